// Package shutdown provides process termination handling for DocMesh.
//
// It covers three concerns:
//
//   - Flag: the process-wide stop token. Constructed once at startup and
//     passed by handle to every component that must observe termination.
//     The only legal transition is false -> true.
//   - Signal bridge: maps SIGINT/SIGTERM onto the Flag. The notify path
//     performs only the flag write and disposition reset; all logging
//     happens in the loops that later observe the flag.
//   - Coordinator: strict, ordered, best-effort teardown. Steps run in
//     registration order, a step starts only after the previous one has
//     fully completed, and failures are logged but never abort the
//     sequence.
package shutdown
