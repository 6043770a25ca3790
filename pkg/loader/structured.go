package loader

import (
	"fmt"
	"io"

	"github.com/vanderheijden86/peektree/pkg/model"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// YAMLParser reads the native YAML layout:
//
//	title: Features
//	levels:
//	  - id: root
//	    nodes:
//	      - {id: a, label: A}
//	  - id: level-a
//	    parent: a
//	    nodes: [...]
type YAMLParser struct{}

func (p *YAMLParser) Parse(r io.Reader, filename string) (model.Document, error) {
	var doc model.Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return model.Document{}, fmt.Errorf("empty document")
		}
		return model.Document{}, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Title == "" {
		doc.Title = titleFromFilename(filename)
	}
	return doc, nil
}

// JSONParser reads the same layout as YAMLParser encoded as JSON.
type JSONParser struct{}

func (p *JSONParser) Parse(r io.Reader, filename string) (model.Document, error) {
	var doc model.Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return model.Document{}, fmt.Errorf("empty document")
		}
		return model.Document{}, fmt.Errorf("decode json: %w", err)
	}
	if doc.Title == "" {
		doc.Title = titleFromFilename(filename)
	}
	return doc, nil
}
