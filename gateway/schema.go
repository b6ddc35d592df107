package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// GenerateStructured asks the provider for JSON conforming to the schema
// derived from out's type, then decodes and validates the answer into out.
// out must be a pointer to a struct.
func (g *Gateway) GenerateStructured(ctx context.Context, req Request, out any) (*Response, error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, NewError(ErrorTypeRequest, "structured output target must be a pointer to a struct", nil)
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(out)
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, NewError(ErrorTypeRequest, "marshal output schema", err)
	}

	req.Prompt = fmt.Sprintf(
		"%s\n\nRespond with a single JSON object conforming to this JSON Schema. Output only the JSON, no prose:\n%s",
		req.Prompt, schemaJSON)

	resp, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), out); err != nil {
		return resp, NewError(ErrorTypeProviderCall, "response is not valid JSON for the requested schema", err)
	}
	if err := validate.Struct(out); err != nil {
		return resp, NewError(ErrorTypeProviderCall, "response JSON failed validation", err)
	}

	return resp, nil
}

// extractJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON object or array.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	end := strings.LastIndexAny(text, "}]")
	if end < start {
		return text
	}
	return text[start : end+1]
}
