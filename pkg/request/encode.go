package request

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Mode selects the request body encoding.
type Mode int

const (
	// ModeForm encodes the body as application/x-www-form-urlencoded.
	ModeForm Mode = iota

	// ModeMultipart encodes the body as multipart/form-data.
	ModeMultipart
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeForm:
		return "form"
	case ModeMultipart:
		return "multipart"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const formContentType = "application/x-www-form-urlencoded"

// EncodeForm percent-encodes p in insertion order. Keys and values keep full
// UTF-8 fidelity; sequence values repeat the key once per element.
func EncodeForm(p *Params) (string, error) {
	var b strings.Builder
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		parts, err := formValues(value)
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", key, err)
		}
		for _, part := range parts {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(part))
		}
	}
	return b.String(), nil
}

// EncodeMultipart writes p as a multipart/form-data body and returns the body
// together with its content type (which carries the boundary).
func EncodeMultipart(p *Params) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		if f, ok := value.(File); ok {
			if err := writeFilePart(w, key, f); err != nil {
				return nil, "", fmt.Errorf("parameter %q: %w", key, err)
			}
			continue
		}
		parts, err := formValues(value)
		if err != nil {
			return nil, "", fmt.Errorf("parameter %q: %w", key, err)
		}
		for _, part := range parts {
			if err := w.WriteField(key, part); err != nil {
				return nil, "", fmt.Errorf("write field %q: %w", key, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, key string, f File) error {
	name := f.Name
	if name == "" {
		name = key
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(key), escapeQuotes(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// formValues renders a parameter value as zero or more wire strings.
func formValues(value any) ([]string, error) {
	switch v := value.(type) {
	case File:
		return nil, ErrMultipartRequired
	case []byte:
		return []string{string(v)}, nil
	case []string:
		return v, nil
	case bool:
		if v {
			return []string{"1"}, nil
		}
		return nil, nil
	}

	s, ok, err := scalar(value)
	if err != nil {
		return nil, err
	}
	if ok {
		return []string{s}, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		s, ok, err := scalar(elem)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: nested %T", ErrUnsupportedValue, elem)
		}
		out = append(out, s)
	}
	return out, nil
}

// scalar formats single values. ok is false for sequences.
func scalar(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", true, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	case bool:
		if v {
			return "1", true, nil
		}
		return "", true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), true, nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), true, nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case File:
		return "", false, ErrMultipartRequired
	case fmt.Stringer:
		return v.String(), true, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	}
	return "", false, nil
}
