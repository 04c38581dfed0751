//go:build llama

package llamacpp

// libllama and libggml are expected next to the binary (./bin); the rpath
// lets the loader find them there at run time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
