package http

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errMalformedRange     = errors.New("malformed range")
	errUnsatisfiableRange = errors.New("range not satisfiable")
)

// byteRange is an inclusive byte interval of a file.
type byteRange struct {
	start int64
	end   int64
	// openEnded is set for "bytes=a-" and for requests without a Range
	// header. Such ranges may be shortened to what is readable.
	openEnded bool
	// explicit is false when the request carried no Range header.
	explicit bool
}

func (b byteRange) length() int64 { return b.end - b.start + 1 }

// parseRange resolves a Range header against a file of size bytes. An empty
// header means the whole file. Only the first range of a multi-range request
// is honoured.
func parseRange(header string, size int64) (byteRange, error) {
	header = strings.TrimSpace(header)
	if size <= 0 {
		return byteRange{}, errUnsatisfiableRange
	}
	if header == "" {
		return byteRange{start: 0, end: size - 1, openEnded: true}, nil
	}
	if len(header) < len("bytes=") || !strings.EqualFold(header[:len("bytes=")], "bytes=") {
		return byteRange{}, errMalformedRange
	}

	rangeSet := strings.TrimSpace(header[len("bytes="):])
	if i := strings.IndexByte(rangeSet, ','); i >= 0 {
		rangeSet = strings.TrimSpace(rangeSet[:i])
	}
	startStr, endStr, ok := strings.Cut(rangeSet, "-")
	if !ok {
		return byteRange{}, errMalformedRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix < 0 {
			return byteRange{}, errMalformedRange
		}
		if suffix == 0 {
			return byteRange{}, errUnsatisfiableRange
		}
		if suffix > size {
			suffix = size
		}
		return byteRange{start: size - suffix, end: size - 1, explicit: true}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, errMalformedRange
	}
	if endStr == "" {
		if start >= size {
			return byteRange{}, errUnsatisfiableRange
		}
		return byteRange{start: start, end: size - 1, openEnded: true, explicit: true}, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return byteRange{}, errMalformedRange
	}
	if start >= size {
		return byteRange{}, errUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{start: start, end: end, explicit: true}, nil
}
