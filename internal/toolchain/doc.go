// Package toolchain runs the external command-line tools pybake wraps (an
// obfuscator and a native-module compiler) and collects what they produce.
// Tools are opaque: a Tool is a command line with placeholders plus the
// artifact patterns that pick its outputs.
package toolchain
