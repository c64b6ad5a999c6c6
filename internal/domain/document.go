package domain

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Origin describes where a candidate came from. The pipeline core never
// interprets these values; they flow into audit records and the catalog.
type Origin struct {
	// Sender is the From header of the email carrying the document.
	Sender string
	// Subject is the email subject.
	Subject string
	// Date is the email Date header as written by the sender.
	Date string
	// Container is the name of the EML file, mailbox or archive.
	Container string
	// Folder is the folder inside the container, when it has folders.
	Folder string
}

// Candidate is a file considered for classification.
//
// Content is read at most once; the returned slice is shared and must not be
// modified by callers.
type Candidate struct {
	// SourcePath is the file location on disk, or a synthetic
	// "container/attachment" path for in-memory attachments.
	SourcePath string
	// RawName is the file name as given by its container.
	RawName string
	// Origin is caller supplied provenance.
	Origin Origin
	// OnDisk is true when SourcePath is a real file that can be moved.
	OnDisk bool
	// Size is the payload length in bytes when known without reading the
	// content, -1 otherwise.
	Size int64

	open    func() (io.ReadCloser, error)
	once    sync.Once
	content []byte
	err     error
}

// NewFileCandidate creates a candidate backed by a file on disk.
func NewFileCandidate(path, name string, origin Origin) *Candidate {
	return &Candidate{
		SourcePath: path,
		RawName:    name,
		Origin:     origin,
		OnDisk:     true,
		Size:       -1,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// NewMemoryCandidate creates a candidate whose bytes are already in memory,
// such as a decoded email attachment.
func NewMemoryCandidate(path, name string, content []byte, origin Origin) *Candidate {
	return &Candidate{
		SourcePath: path,
		RawName:    name,
		Origin:     origin,
		Size:       int64(len(content)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// Content returns the candidate payload, reading it on first use.
func (c *Candidate) Content() ([]byte, error) {
	c.once.Do(func() {
		if c.open == nil {
			c.err = fmt.Errorf("candidate %s has no content source", c.SourcePath)
			return
		}
		r, err := c.open()
		if err != nil {
			c.err = err
			return
		}
		defer func() { _ = r.Close() }()
		c.content, c.err = io.ReadAll(r)
	})
	return c.content, c.err
}
