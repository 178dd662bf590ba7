package buffer

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// B64Encode appends the base64 encoding of b's logical contents to dst,
// extending dst as needed. The algorithm is a direct port of
// rn_buffer_b64encode's bit-accumulator loop: bits are shifted in eight at a
// time and flushed six at a time, with '=' padding to a multiple of four
// characters. This is intentionally not encoding/base64: the buffer ABI
// contract fixes this exact algorithm rather than an equivalent substitute.
func (b *Buffer) B64Encode(dst *Buffer) error {
	var bits uint32
	var shift uint
	var written int

	for i := 0; i < b.size; i++ {
		bits = (bits << 8) + uint32(b.ptr[i])
		shift += 8
		for shift >= 6 {
			shift -= 6
			idx := (bits >> shift) & 0x3f
			if _, err := dst.Add([]byte{b64Alphabet[idx]}); err != nil {
				return err
			}
			written++
		}
	}
	if shift > 0 {
		idx := (bits << (6 - shift)) & 0x3f
		if _, err := dst.Add([]byte{b64Alphabet[idx]}); err != nil {
			return err
		}
		written++
	}
	for written%4 != 0 {
		if _, err := dst.Add([]byte{'='}); err != nil {
			return err
		}
		written++
	}
	return nil
}
