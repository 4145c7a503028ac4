// Package vm implements the Angstrom virtual machine.
//
// This package contains:
//   - Tagged value representation and heap object handles
//   - Structural type descriptors and the interning type registry
//   - Stack-based bytecode interpreter with closures and natives
//   - Mark and sweep garbage collector rooted at stack, globals and registers
//   - Disassembler, execution profiler and portable program images
package vm
