package testimage

import "fmt"

// Pattern returns n deterministic bytes seeded by seed, so every file has distinct content.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) ^ seed
	}
	return b
}

// SystemCNF is the boot configuration stored in the fixture.
const SystemCNF = "BOOT = cdrom:\\SCUS_942.28;1\r\nTCB = 4\r\nEVENT = 10\r\nSTACK = 801FFFF0\r\n"

// PlayStation builds the fixture volume: a root holding a SOURCE directory with SOURCE.TRD, six
// streamed movies, an S0 directory, the executable, SYSTEM.CNF and the WAD.WAD archive.
func PlayStation() (*Image, error) {
	b := NewBuilder()
	b.AddFile("/SOURCE/SOURCE.TRD", Pattern(700, 0x11))
	for i := 0; i < 6; i++ {
		b.AddFile(fmt.Sprintf("/PETEXA%d.STR", i), Pattern(BlockSize+100*i, byte(0x20+i)))
	}
	b.AddFile("/S0/LEVEL.WAD", Pattern(3*BlockSize, 0x30))
	b.AddFile("/SCUS_942.28", Pattern(4*BlockSize+17, 0x40))
	b.AddFile("/SYSTEM.CNF", []byte(SystemCNF))
	b.AddFile("/WAD.WAD", Pattern(5000, 0x50))
	return b.Build()
}
