package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

func bindRequest(req *http.Request, body []byte, request any) error {
	if binder, ok := request.(Binder); ok {
		return binder.Bind(req, body)
	}

	switch req.Method {
	case http.MethodGet, http.MethodDelete:
		return bindQuery(req, request)
	default:
		if len(body) == 0 {
			return nil
		}

		return json.Unmarshal(body, request)
	}
}

// bindQuery fills exported string and integer fields from URL query values,
// keyed by the json tag.
func bindQuery(req *http.Request, request any) error {
	value := reflect.ValueOf(request).Elem()
	if value.Kind() != reflect.Struct {
		return fmt.Errorf("expected a struct request, got %s", value.Kind())
	}

	query := req.URL.Query()
	for i := 0; i < value.NumField(); i++ {
		field := value.Type().Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		if !query.Has(name) {
			continue
		}

		raw := query.Get(name)
		switch field.Type.Kind() {
		case reflect.String:
			value.Field(i).SetString(raw)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value of %s", name)
			}
			value.Field(i).SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid boolean value of %s", name)
			}
			value.Field(i).SetBool(b)
		default:
			return fmt.Errorf("unsupported field type %s of %s", field.Type.Kind(), name)
		}
	}

	return nil
}
