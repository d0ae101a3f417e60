// Package config loads docmeld build configuration documents.
//
// A document may import other documents, declare targets and run target
// factories. Load resolves all of that into a single immutable Tree. Every
// target in the Tree is stamped with the path of the document that defined it
// (_defpath) and the path its command runs relative to (_workpath).
package config
