package templates

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/ledger/internal/model"
)

// File is the on-disk form of a set of template definitions.
type File struct {
	Templates []Definition `yaml:"templates"`
}

// Definition is one template as written by an operator.
type Definition struct {
	ID           string           `yaml:"id,omitempty"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description,omitempty"`
	DocumentType string           `yaml:"document_type"`
	Lines        []LineDefinition `yaml:"lines"`
}

// LineDefinition is one template line. Order defaults to the position in
// the list.
type LineDefinition struct {
	Account     string `yaml:"account"`
	Side        string `yaml:"side"`
	Formula     string `yaml:"formula"`
	Order       int    `yaml:"order,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ReadDefinitions decodes a template YAML file.
func ReadDefinitions(r io.Reader) ([]model.JournalTemplate, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing template file: %w", err)
	}

	out := make([]model.JournalTemplate, 0, len(f.Templates))
	for _, d := range f.Templates {
		out = append(out, d.Template())
	}
	return out, nil
}

// WriteDefinitions encodes templates as a YAML file.
func WriteDefinitions(w io.Writer, tpls []model.JournalTemplate) error {
	f := File{Templates: make([]Definition, 0, len(tpls))}
	for _, jt := range tpls {
		f.Templates = append(f.Templates, DefinitionOf(jt))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("writing template file: %w", err)
	}
	return enc.Close()
}

// Template converts the definition to a model template.
func (d Definition) Template() model.JournalTemplate {
	jt := model.JournalTemplate{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		DocumentType: d.DocumentType,
		Active:       true,
	}
	for i, l := range d.Lines {
		order := l.Order
		if order == 0 {
			order = i + 1
		}
		jt.Lines = append(jt.Lines, model.TemplateLine{
			AccountCode: l.Account,
			Side:        model.Side(l.Side),
			Formula:     l.Formula,
			Order:       order,
			Description: l.Description,
		})
	}
	return jt
}

// DefinitionOf converts a model template to its file form.
func DefinitionOf(jt model.JournalTemplate) Definition {
	d := Definition{
		ID:           jt.ID,
		Name:         jt.Name,
		Description:  jt.Description,
		DocumentType: jt.DocumentType,
	}
	for _, l := range jt.Lines {
		d.Lines = append(d.Lines, LineDefinition{
			Account:     l.AccountCode,
			Side:        string(l.Side),
			Formula:     l.Formula,
			Order:       l.Order,
			Description: l.Description,
		})
	}
	return d
}
