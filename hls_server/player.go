package hls_server

import (
	"html/template"
	"io"

	"github.com/pkg/errors"

	"github.com/hlstv/hlstv/assets"
)

type PlayerPage struct {
	tmpl *template.Template
}

func NewPlayerPage() (*PlayerPage, error) {
	t, err := assets.Page()
	if err != nil {
		return nil, err
	}
	return &PlayerPage{tmpl: t}, nil
}

func (p *PlayerPage) ComposePlayerPage(writer io.Writer, data assets.PageData) error {
	return errors.Wrap(p.tmpl.Execute(writer, data), "cannot render player page")
}
