package templates

import (
	"embed"
	"io/fs"
)

//go:embed all:files
var embedded embed.FS

// Embedded returns the engine over the template set compiled into the
// binary. Paths are relative to the files root, e.g.
// "intents/problemdetails/open/text.tmpl".
func Embedded() *Engine {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		panic(err)
	}
	return MustNew(sub)
}
