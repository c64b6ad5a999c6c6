package source

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// maxDepth bounds multipart nesting.
const maxDepth = 16

var errTooDeep = errors.New("multipart nesting too deep")

// Message is the part of an email the pipelines care about.
type Message struct {
	From        string
	Subject     string
	Date        string
	Attachments []Attachment
}

// Attachment is a decoded file carried by an email.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	// Size is the decoded length. It exceeds len(Data) when the attachment
	// was over the parse limit, in which case Data is nil.
	Size int64
}

// Oversized reports whether the attachment was dropped for its size.
func (a Attachment) Oversized() bool {
	return a.Data == nil && a.Size > 0
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value when
// decoding fails.
func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// ParseMessage reads an RFC 822 message and decodes every part that carries
// a file name, at any multipart depth.
func ParseMessage(r io.Reader) (*Message, error) {
	return ParseMessageLimit(r, 0)
}

// ParseMessageLimit is ParseMessage keeping at most maxAttachment decoded
// bytes per attachment; larger attachments are measured but not buffered.
// A non-positive limit keeps everything.
func ParseMessageLimit(r io.Reader, maxAttachment int64) (*Message, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	out := &Message{
		From:    decodeHeader(msg.Header.Get("From")),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Date:    msg.Header.Get("Date"),
	}

	header := textproto.MIMEHeader(msg.Header)
	if err := collectParts(header, msg.Body, out, maxAttachment, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func collectParts(header textproto.MIMEHeader, body io.Reader, out *Message, limit int64, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}

	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("%s without boundary", mediaType)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read part: %w", err)
			}
			err = collectParts(part.Header, part, out, limit, depth+1)
			_ = part.Close()
			if err != nil {
				return err
			}
		}
	}

	name := partFileName(header, params)
	if name == "" {
		return nil
	}

	data, size, err := decodePart(transferDecoder(header.Get("Content-Transfer-Encoding"), body), limit)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	out.Attachments = append(out.Attachments, Attachment{
		Name:        name,
		ContentType: mediaType,
		Data:        data,
		Size:        size,
	})
	return nil
}

// decodePart reads r, buffering at most limit bytes. Past the limit the rest
// is only counted and the data is dropped.
func decodePart(r io.Reader, limit int64) ([]byte, int64, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		return data, int64(len(data)), err
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, err
	}
	if int64(len(data)) <= limit {
		return data, int64(len(data)), nil
	}
	rest, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, 0, err
	}
	return nil, int64(len(data)) + rest, nil
}

// partFileName returns the Content-Disposition filename, falling back to the
// Content-Type name parameter. RFC 2231 parameters are decoded by
// mime.ParseMediaType, RFC 2047 words here.
func partFileName(header textproto.MIMEHeader, typeParams map[string]string) string {
	var name string
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	if name == "" {
		name = typeParams["name"]
	}
	if name == "" {
		return ""
	}
	name = decodeHeader(name)
	// Only the base name is trusted, whatever the sender wrote.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &base64Cleaner{r: r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// base64Cleaner drops bytes that are not part of the base64 alphabet, such
// as the trailing spaces some mailers add to encoded lines.
type base64Cleaner struct {
	r io.Reader
}

func (c *base64Cleaner) Read(p []byte) (int, error) {
	for {
		n, err := c.r.Read(p)
		kept := p[:0]
		for _, b := range p[:n] {
			if isBase64(b) {
				kept = append(kept, b)
			}
		}
		if len(kept) > 0 || err != nil {
			return len(kept), err
		}
	}
}

func isBase64(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9' ||
		b == '+' || b == '/' || b == '='
}
