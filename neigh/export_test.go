package neigh

// ParseLLDPForTest exposes parseLLDP to external tests.
var ParseLLDPForTest = parseLLDP
