package feed

import "sync"

// validatorCache holds the ETag of the last successfully decoded release
// response. It is replaced as a whole and never partially updated.
type validatorCache struct {
	mu   sync.Mutex
	etag string
}

func (v *validatorCache) get() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.etag
}

func (v *validatorCache) put(etag string) {
	if etag == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.etag = etag
}

func (v *validatorCache) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.etag = ""
}
