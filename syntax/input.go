package syntax

import "io"

// Input supplies source text in chunks. Read returns the text starting at
// offset; an empty result ends the input, after which the parser does not
// call Read again.
type Input interface {
	Read(offset uint32, position Point) []byte
}

// ReadFunc adapts a pull callback to Input.
type ReadFunc func(offset uint32, position Point) []byte

func (f ReadFunc) Read(offset uint32, position Point) []byte {
	return f(offset, position)
}

// TextBuffer is a random-access text store. It must tolerate concurrent
// reads, which makes it the input shape accepted by ParseAsync.
type TextBuffer interface {
	io.ReaderAt
	Size() int64
}

const bufferChunkSize = 4096

type bytesInput []byte

func (b bytesInput) Read(offset uint32, _ Point) []byte {
	if int(offset) >= len(b) {
		return nil
	}
	return b[offset:]
}

type stringInput string

func (s stringInput) Read(offset uint32, _ Point) []byte {
	if int(offset) >= len(s) {
		return nil
	}
	return []byte(s[offset:])
}

type bufferInput struct {
	buf TextBuffer
}

func (b bufferInput) Read(offset uint32, _ Point) []byte {
	size := b.buf.Size()
	if int64(offset) >= size {
		return nil
	}
	n := size - int64(offset)
	if n > bufferChunkSize {
		n = bufferChunkSize
	}
	chunk := make([]byte, n)
	// A short read ends the input at the bytes actually read.
	read, _ := b.buf.ReadAt(chunk, int64(offset))
	return chunk[:read]
}

// sizedInput is implemented by inputs whose length is known up front.
type sizedInput interface {
	size() int64
}

func (b bytesInput) size() int64  { return int64(len(b)) }
func (s stringInput) size() int64 { return int64(len(s)) }
func (b bufferInput) size() int64 { return b.buf.Size() }

// inputFor accepts the supported source shapes.
func inputFor(source any) (Input, error) {
	switch src := source.(type) {
	case string:
		return stringInput(src), nil
	case []byte:
		return bytesInput(src), nil
	case ReadFunc:
		if src == nil {
			return nil, ErrInvalidInput
		}
		return src, nil
	case func(uint32, Point) []byte:
		if src == nil {
			return nil, ErrInvalidInput
		}
		return ReadFunc(src), nil
	case TextBuffer:
		if src == nil {
			return nil, ErrInvalidInput
		}
		return bufferInput{buf: src}, nil
	case Input:
		if src == nil {
			return nil, ErrInvalidInput
		}
		return src, nil
	}
	return nil, ErrInvalidInput
}
