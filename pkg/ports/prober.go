package ports

// ClipInfo describes an encoded clip file.
type ClipInfo struct {
	Codec      string
	Fragmented bool
	Fragments  int
	Samples    int
	DurationMs int64
	Size       int64
}

// ClipProber inspects encoded clip files.
type ClipProber interface {
	Probe(path string) (ClipInfo, error)
}
