// Package metrics records build metrics behind a Recorder interface.
//
// Components default to NoopRecorder so no nil checks are needed. The CLI
// swaps in a PrometheusRecorder when --metrics-file is given and writes the
// registry out in the node_exporter textfile format when the command ends;
// watch mode can also serve the registry over HTTP.
package metrics
