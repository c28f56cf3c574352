// Package intent decodes structured intents from parser output, files and
// HTTP bodies.
package intent

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
)

const decodeOp = "decode intent"

var (
	fieldOperationType = reflect.TypeOf(model.FieldOperation{})
	modeType           = reflect.TypeOf(model.Mode(""))
	actionType         = reflect.TypeOf(model.Action(""))
	fieldType          = reflect.TypeOf(model.Field(""))
)

// Decode validates raw against the intent schema and converts it into an
// intent with default modes filled in.
func Decode(raw map[string]any) (model.Intent, error) {
	if err := ValidateRaw(raw); err != nil {
		return model.Intent{}, err
	}

	var out model.Intent
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bareValueHook,
			normalizeNameHook,
		),
	})
	if err != nil {
		return model.Intent{}, fmt.Errorf("build intent decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return model.Intent{}, failure.Validation(decodeOp, err.Error())
	}
	return ApplyDefaults(out), nil
}

// ApplyDefaults fills in modes left empty and lifts a create title from the
// task reference. It is the only place defaults are applied.
func ApplyDefaults(in model.Intent) model.Intent {
	out := in
	out.Fields = make(map[model.Field]model.FieldOperation, len(in.Fields)+1)
	for f, op := range in.Fields {
		if op.Mode == "" {
			op.Mode = defaultMode(in.Action, f)
		}
		out.Fields[f] = op
	}
	if in.Action == model.ActionCreate {
		if _, ok := out.Fields[model.FieldTitle]; !ok && strings.TrimSpace(in.Task.Title) != "" {
			out.Fields[model.FieldTitle] = model.FieldOperation{Value: strings.TrimSpace(in.Task.Title), Mode: model.ModeReplace}
		}
	}
	return out
}

func defaultMode(action model.Action, f model.Field) model.Mode {
	switch {
	case action.Single() == model.ActionTag && f == model.FieldTags:
		return model.ModeMerge
	case action == model.ActionNote && f == model.FieldNotes:
		return model.ModeAppend
	case action.Single() != model.ActionCreate && f == model.FieldReminders:
		return model.ModeMerge
	default:
		return model.ModeReplace
	}
}

// bareValueHook accepts `"tags": ["a"]` as shorthand for `{"value": ["a"]}`.
func bareValueHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != fieldOperationType {
		return data, nil
	}
	if m, ok := data.(map[string]any); ok {
		_, hasValue := m["value"]
		_, hasMode := m["mode"]
		if hasValue || hasMode {
			return data, nil
		}
	}
	return map[string]any{"value": data}, nil
}

func normalizeNameHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	switch to {
	case modeType, actionType, fieldType:
		return strings.ToLower(strings.TrimSpace(s)), nil
	}
	return data, nil
}
