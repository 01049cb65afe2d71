// Package proc models the machine state the kernel monitor inspects: the
// physical memory of the trapped machine, its page tables, its trapped
// register state and the frame pointer chain on its kernel stack.
//
// Nothing in this package writes to the machine. Traversals follow whatever
// values they find in memory; a corrupted frame chain or page directory
// produces garbage or a read error, never a recovered state.
package proc
