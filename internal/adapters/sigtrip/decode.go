package sigtrip

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"sigtrip_wrapper/internal/domain"
)

const FallbackTextKey = domain.FallbackTextKey

const (
	ssePrefix   = "data:"
	sseSentinel = "[DONE]"
)

// Decode extracts the structured result of one tool call from a raw
// response body. It returns domain.ErrUnparsed when neither a JSON-RPC
// envelope nor usable tool output can be recovered.
func Decode(raw, contentType string) (map[string]any, error) {
	data, _, err := DecodeRaw(raw, contentType)
	return data, err
}

// DecodeRaw is Decode that also returns the JSON text the result was taken
// from, with the upstream's key order intact. The text is nil for a
// text_fallback result.
func DecodeRaw(raw, contentType string) (map[string]any, []byte, error) {
	frame, env, ok := envelope(raw, contentType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no json-rpc envelope", domain.ErrUnparsed)
	}
	return decodeResult(frame, env)
}

// ParseEnvelope recovers the JSON-RPC envelope from an event stream or a
// plain JSON body. Only the first object frame of a stream is used.
func ParseEnvelope(raw, contentType string) (map[string]any, bool) {
	_, env, ok := envelope(raw, contentType)
	return env, ok
}

func envelope(raw, contentType string) (string, map[string]any, bool) {
	if strings.Contains(contentType, "text/event-stream") || strings.Contains(raw, ssePrefix) {
		if frame, env, ok := firstEventFrame(raw); ok {
			return frame, env, true
		}
	}
	env, ok := parseObject(raw)
	return raw, env, ok
}

// firstEventFrame reads line by line and returns the first data: line that
// holds a JSON object. Multi-line events are not merged.
func firstEventFrame(raw string) (string, map[string]any, bool) {
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
		if data == "" || data == sseSentinel {
			continue
		}
		if obj, ok := parseObject(data); ok {
			return data, obj, true
		}
	}
	return "", nil, false
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Result extracts the structured tool result from an already parsed envelope.
func Result(env map[string]any) (map[string]any, error) {
	data, _, err := decodeResult("", env)
	return data, err
}

func decodeResult(frame string, env map[string]any) (map[string]any, []byte, error) {
	result, _ := env["result"].(map[string]any)
	if sc, ok := result["structuredContent"].(map[string]any); ok {
		return sc, structuredContentText(frame), nil
	}

	text, ok := firstContentText(result)
	if !ok {
		if rpcErr, ok := env["error"].(map[string]any); ok {
			return nil, nil, fmt.Errorf("%w: rpc error %v: %v", domain.ErrUnparsed, rpcErr["code"], rpcErr["message"])
		}
		return nil, nil, fmt.Errorf("%w: result carries no structured content or text", domain.ErrUnparsed)
	}
	if obj, raw, ok := embeddedObject(text); ok {
		return obj, raw, nil
	}
	return map[string]any{FallbackTextKey: text}, nil, nil
}

func structuredContentText(frame string) []byte {
	var env struct {
		Result struct {
			StructuredContent json.RawMessage `json:"structuredContent"`
		} `json:"result"`
	}
	if frame == "" || json.Unmarshal([]byte(frame), &env) != nil {
		return nil
	}
	return env.Result.StructuredContent
}

func firstContentText(result map[string]any) (string, bool) {
	content, _ := result["content"].([]any)
	if len(content) == 0 {
		return "", false
	}
	first, _ := content[0].(map[string]any)
	text, _ := first["text"].(string)
	text = strings.TrimSpace(text)
	return text, text != ""
}

// embeddedObject tries the whole text, then the outermost {...} span, then
// the outermost [...] span. The first candidate that parses decides; only an
// object counts as found.
func embeddedObject(text string) (map[string]any, []byte, bool) {
	for _, c := range jsonCandidates(text) {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, nil, false
		}
		return obj, []byte(c), true
	}
	return nil, nil, false
}

func jsonCandidates(text string) []string {
	out := []string{text}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		out = append(out, text[i:j+1])
	}
	if i, j := strings.Index(text, "["), strings.LastIndex(text, "]"); i >= 0 && j > i {
		out = append(out, text[i:j+1])
	}
	return out
}

// FallbackText returns the wrapped text when data is a fallback wrapper.
func FallbackText(data map[string]any) (string, bool) {
	if len(data) != 1 {
		return "", false
	}
	s, ok := data[FallbackTextKey].(string)
	return s, ok
}
