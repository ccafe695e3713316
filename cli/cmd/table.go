package cmd

import (
	"fmt"
	"io"
	"reflect"
)

// printTable renders v as "Field: value" lines, one per exported
// top-level field; a slice or array field prints its length and then one
// %v line per element, a map field one line per entry, and a non-struct v
// a single %v line. Nested structs are not expanded — enough
// for the CLI's result summaries without building a full table renderer
// (table/JSON rendering detail is out of scope per spec §1).
func printTable(w io.Writer, v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		_, err := fmt.Fprintf(w, "%v\n", v)
		return err
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)

		switch fv.Kind() {
		case reflect.Slice, reflect.Array:
			fmt.Fprintf(w, "%s: %d\n", field.Name, fv.Len())
			for j := 0; j < fv.Len(); j++ {
				fmt.Fprintf(w, "  - %v\n", fv.Index(j).Interface())
			}
		case reflect.Map:
			fmt.Fprintf(w, "%s:\n", field.Name)
			iter := fv.MapRange()
			for iter.Next() {
				fmt.Fprintf(w, "  %v: %v\n", iter.Key().Interface(), iter.Value().Interface())
			}
		default:
			fmt.Fprintf(w, "%s: %v\n", field.Name, fv.Interface())
		}
	}
	return nil
}
