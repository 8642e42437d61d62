package location

// Keyspace:
// - counters/{scope}/{sequence}           (pebble, bolt)
// - {prefix}/counters/{scope}/{sequence}  (object stores)
//
// Scope and sequence names never contain '/'.

var (
	sep            = byte('/')
	countersPrefix = []byte("counters/")
)

func counterKey(scope, sequence string) []byte {
	k := make([]byte, 0, len(countersPrefix)+len(scope)+len(sequence)+1)
	k = append(k, countersPrefix...)
	k = append(k, scope...)
	k = append(k, sep)
	k = append(k, sequence...)
	return k
}

func objectKey(prefix, scope, sequence string) string {
	k := string(counterKey(scope, sequence))
	if prefix == "" {
		return k
	}
	if prefix[len(prefix)-1] == sep {
		return prefix + k
	}
	return prefix + string(sep) + k
}
