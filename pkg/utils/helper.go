package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-querystring/query"
)

func FormatObject(obj interface{}) (string, error) {
	loggableMap := make(map[string]interface{})

	v := reflect.ValueOf(obj)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {

		jsonOutput, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonOutput), nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Func {

			loggableMap[fieldType.Name] = "<function>"
			continue
		}

		if field.CanInterface() {
			loggableMap[fieldType.Name] = field.Interface()
		}
	}

	jsonOutput, err := json.MarshalIndent(loggableMap, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonOutput), nil
}

func EncodeURLParams(params interface{}) (string, error) {
	v, err := query.Values(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode url param: %w", err)
	}
	return v.Encode(), nil
}

func BeautifyJSON(data []byte) string {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return string(data)
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(pretty)
}

// MaskUID redacts the first n characters of a game UID for display.
// UIDs shorter than n are fully redacted.
func MaskUID(uid string, n int) string {
	if n <= 0 {
		return uid
	}
	runes := []rune(uid)
	if len(runes) <= n {
		return strings.Repeat("x", len(runes))
	}
	return strings.Repeat("x", n) + string(runes[n:])
}
