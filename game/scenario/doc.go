// Package scenario manages the directory of RLE scenario files.
//
// Each scenario is a text file named <name>.txt holding one run-length
// encoded map:
//
//	20X10
//	21O 18E 2O 18E 2O ...
//
// Manager caches decoded grids, lists what is available and writes scenarios
// back in canonical form. When a scenario is requested that does not exist,
// or does not decode, LoadOrGenerate substitutes a generated walled room and
// logs a warning instead of failing the caller.
//
// Usage:
//
//	manager, err := scenario.NewManager("scenarios")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sc, err := manager.LoadOrGenerate("maze")
package scenario
