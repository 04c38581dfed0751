// Package llamacpp is the llama.cpp backend. Build with -tags=llama and the
// shared libraries in ./bin; without the tag Load reports the dependency as
// unavailable.
package llamacpp
