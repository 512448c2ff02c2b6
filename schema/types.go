package schema

import (
	"reflect"
	"strings"
)

type schemaItem struct {
	Description string       `json:"description,omitempty"`
	Mode        string       `json:"mode"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Fields      []schemaItem `json:"fields,omitempty"`
}

// fieldsOf describes the exported fields of struct type t as they
// appear once marshalled to JSON. A field's mode comes from its mode
// tag, defaulting to NULLABLE; slices are REPEATED.
func fieldsOf(t reflect.Type) (items []schemaItem) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		item := schemaItem{
			Name: name,
			Mode: f.Tag.Get("mode"),
		}
		if item.Mode == "" {
			item.Mode = "NULLABLE"
		}

		ft := f.Type
		if ft.Kind() == reflect.Slice {
			item.Mode = "REPEATED"
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		item.Type = bigQueryType(ft)
		if item.Type == "RECORD" {
			item.Fields = fieldsOf(ft)
		}
		items = append(items, item)
	}
	return
}

func bigQueryType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "FLOAT"
	case reflect.Struct:
		return "RECORD"
	}
	return "STRING"
}
