package sandbox

import "testing"

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewCache(2)
	req := func(pid int) PermissionRequest {
		return PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: string(rune('a' + pid))}, Action: ActionRead}
	}
	c.Put(req(0), PermissionResponse{Allowed: true})
	c.Put(req(1), PermissionResponse{Allowed: true})
	c.Put(req(2), PermissionResponse{Allowed: true}) // evicts req(0)

	if _, ok := c.Get(req(0)); ok {
		t.Fatalf("Get(evicted) got ok=true want false")
	}
	if _, ok := c.Get(req(1)); !ok {
		t.Fatalf("Get(req1) got ok=false want true")
	}
	if _, ok := c.Get(req(2)); !ok {
		t.Fatalf("Get(req2) got ok=false want true")
	}
}

func TestCacheHitRate(t *testing.T) {
	c := NewCache(4)
	req := PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/a"}, Action: ActionRead}

	c.Get(req) // miss
	c.Put(req, PermissionResponse{Allowed: true})
	c.Get(req) // hit
	c.Get(req) // hit

	if got, want := c.HitRate(), 2.0/3.0; got != want {
		t.Fatalf("HitRate got %v want %v", got, want)
	}
}
