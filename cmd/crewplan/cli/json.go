// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"os"
	"reflect"
)

// JSONOutput gives a params struct the --json flag. Commands embed it
// and offer EmitJSON their result before any text rendering:
//
//	if done, err := params.EmitJSON(tasks); done {
//	    return err
//	}
//	// text rendering follows
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"print results as JSON"`
}

// EmitJSON reports whether --json is set, writing result to stdout
// when it is. A nil slice comes out as [] rather than null, so list
// consumers can always iterate the output.
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	if v := reflect.ValueOf(result); v.Kind() == reflect.Slice && v.IsNil() {
		result = reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return true, WriteJSON(result)
}

// WriteJSON prints value to stdout as indented JSON.
func WriteJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
