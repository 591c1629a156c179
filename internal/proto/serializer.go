package proto

import "strconv"

// Serialize renders a frame to its wire form. It never fails: any Frame
// value constructed via this package's constructors (or returned by the
// Parser) is always representable.
func Serialize(f Frame) []byte {
	buf := make([]byte, 0, 64)
	return appendFrame(buf, f)
}

func appendFrame(buf []byte, f Frame) []byte {
	switch f.Kind {
	case KindSimpleString:
		buf = append(buf, '+')
		buf = append(buf, f.Str...)
		return append(buf, '\r', '\n')
	case KindError:
		buf = append(buf, '-')
		buf = append(buf, f.Str...)
		return append(buf, '\r', '\n')
	case KindInteger:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, f.Int, 10)
		return append(buf, '\r', '\n')
	case KindBulkString:
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(f.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, f.Bulk...)
		return append(buf, '\r', '\n')
	case KindNull:
		return append(buf, '$', '-', '1', '\r', '\n')
	case KindNullArray:
		return append(buf, '*', '-', '1', '\r', '\n')
	case KindArray:
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(f.Array)), 10)
		buf = append(buf, '\r', '\n')
		for _, item := range f.Array {
			buf = appendFrame(buf, item)
		}
		return buf
	default:
		// Unreachable for frames built via this package's constructors.
		return append(buf, '-', 'E', 'R', 'R', ' ', 'i', 'n', 'v', 'a', 'l', 'i', 'd', ' ', 'f', 'r', 'a', 'm', 'e', '\r', '\n')
	}
}
