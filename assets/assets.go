package assets

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/pkg/errors"
)

//go:embed templates static
var files embed.FS

const pageName = "templates/index.html"

type PageData struct {
	Title    string
	Channels []string
	WsPath   string
}

// Page parses the player page template.
func Page() (*template.Template, error) {
	t, err := template.ParseFS(files, pageName)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse player page")
	}
	return t, nil
}

// Static is the /static tree: stylesheet and page script.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
