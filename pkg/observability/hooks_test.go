package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnGenerateStart(ctx, 3)
	p.OnGenerateComplete(ctx, 5, time.Second, nil)

	r := NoopRenderHooks{}
	r.OnInterpreterStart(ctx, nil)
	r.OnInterpreterStop(ctx, true)
	r.OnRenderStart(ctx, "/tmp/sheet.ps")
	r.OnRenderComplete(ctx, "/tmp/sheet.ps", time.Second, errors.New("boom"))

	d := NoopDispatchHooks{}
	d.OnListPrinters(ctx, 2, time.Millisecond, nil)
	d.OnPrint(ctx, "office", nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "preview")
	c.OnCacheMiss(ctx, "preview")
	c.OnCacheSet(ctx, "preview", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Render().(NoopRenderHooks); !ok {
		t.Error("Render() should return NoopRenderHooks by default")
	}
	if _, ok := Dispatch().(NoopDispatchHooks); !ok {
		t.Error("Dispatch() should return NoopDispatchHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customRender := &testRenderHooks{}
	SetRenderHooks(customRender)
	if Render() != customRender {
		t.Error("SetRenderHooks should set custom hooks")
	}

	customDispatch := &testDispatchHooks{}
	SetDispatchHooks(customDispatch)
	if Dispatch() != customDispatch {
		t.Error("SetDispatchHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
	if _, ok := Render().(NoopRenderHooks); !ok {
		t.Error("Reset() should restore NoopRenderHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &testRenderHooks{}
	SetRenderHooks(custom)
	SetRenderHooks(nil)

	if Render() != custom {
		t.Error("SetRenderHooks(nil) should be ignored")
	}
}

type testPipelineHooks struct{ NoopPipelineHooks }
type testRenderHooks struct{ NoopRenderHooks }
type testDispatchHooks struct{ NoopDispatchHooks }
type testCacheHooks struct{ NoopCacheHooks }
