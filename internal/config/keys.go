package config

// Reserved top-level keys of a configuration document.
const (
	KeyImports         = "imports"
	KeyImportsRelative = "imports_relative"
	KeyTargets         = "targets"
	KeyTargetFactories = "target_factories"
	KeyData            = "data"
	KeyRequiredVersion = "required_version"
	KeyExpandEnv       = "expand_env"
)

// Keys stamped into documents and targets at load time.
const (
	KeyCfgFilePath = "_cfg_file_path"
	KeyDefPath     = "_defpath"
	KeyWorkPath    = "_workpath"
)

// Target keys with loader or resolver meaning.
const (
	KeyInheritFrom = "inherit_from"
	KeyAbstract    = "abstract"
	KeyCommand     = "command"
	KeyOutputFile  = "output_file"
)

// KeyTemplateRoot is read per target and, as a default, at the document root.
const KeyTemplateRoot = "mm_templates"
