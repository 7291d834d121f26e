package ring

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/city"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

/* Ring hash functions. Every party of one cluster must agree on it. */
const (
	HashFunctionMD5    = HashFunctionType(0)
	HashFunctionMurmur = HashFunctionType(1)
	HashFunctionCity   = HashFunctionType(2)
	HashFunctionXX     = HashFunctionType(3)
)

// Width is the number of hex digits of a RingKey produced by hf.
func (hf HashFunctionType) Width() int {
	if hf == HashFunctionMD5 {
		return 2 * md5.Size
	}
	return 16
}

func (hf HashFunctionType) String() string {
	return ToString(hf)
}

// Digest places identity on the ring. The result is lowercase hex, zero
// padded to hf.Width(), so string order equals numeric order.
func Digest(identity string, hf HashFunctionType) Key {
	var v uint64
	switch hf {
	case HashFunctionMurmur:
		v = murmur3.Sum64([]byte(identity))
	case HashFunctionCity:
		v = city.Hash64([]byte(identity))
	case HashFunctionXX:
		v = xxhash.Sum64String(identity)
	default:
		sum := md5.Sum([]byte(identity))
		return Key(hex.EncodeToString(sum[:]))
	}
	return Key(fmt.Sprintf("%016x", v))
}

// HashFunctionByName maps a configuration name onto a hash function.
// An empty name selects md5.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch hfn {
	case "md5", "":
		return HashFunctionMD5, nil
	case "murmur":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	case "xxhash":
		return HashFunctionXX, nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %s", hfn)
	}
}

func ToString(hf HashFunctionType) string {
	switch hf {
	case HashFunctionMD5:
		return "md5"
	case HashFunctionMurmur:
		return "murmur"
	case HashFunctionCity:
		return "city"
	case HashFunctionXX:
		return "xxhash"
	}
	return ""
}
