package crossproject_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/pkg/crossproject"
	"github.com/zlbkkk/cloudimpact/pkg/model"
)

type fakeProvider struct {
	indices map[string]*model.SymbolIndex
	err     map[string]error
}

func (f *fakeProvider) GetOrBuild(_ context.Context, repoRoot string) (*model.SymbolIndex, error) {
	if err, ok := f.err[repoRoot]; ok {
		return nil, err
	}

	return f.indices[repoRoot], nil
}

func TestFindCrossProjectImpactsExcludeSingleRoot(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{indices: map[string]*model.SymbolIndex{}}
	tracer := crossproject.New([]string{"/ws/pay-api"}, provider, nil)

	impacts, err := tracer.FindCrossProjectImpacts(context.Background(), "com.cloudE.pay.client.PointClient", nil)
	require.NoError(t, err)
	assert.Empty(t, impacts)
}

func TestFindCrossProjectImpactsNeverEmitsMainProject(t *testing.T) {
	t.Parallel()

	fqn := "com.cloudE.pay.client.PointClient"

	relatedIdx := model.NewSymbolIndex("/ws/ucenter-provider", "c1")
	relatedIdx.FilesScanned = []string{"PointManager.java"}

	provider := &fakeProvider{
		indices: map[string]*model.SymbolIndex{
			"/ws/pay-api":           model.NewSymbolIndex("/ws/pay-api", "c0"),
			"/ws/ucenter-provider":  relatedIdx,
		},
	}

	tracer := crossproject.New([]string{"/ws/pay-api", "/ws/ucenter-provider"}, provider, nil)

	impacts, err := tracer.FindCrossProjectImpacts(context.Background(), fqn, nil)
	require.NoError(t, err)

	for _, imp := range impacts {
		assert.NotEqual(t, "pay-api", imp.Project)
	}
}

func TestFindCrossProjectImpactsDegradesOnIndexFailure(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		indices: map[string]*model.SymbolIndex{
			"/ws/main": model.NewSymbolIndex("/ws/main", "c0"),
			"/ws/ok":   model.NewSymbolIndex("/ws/ok", "c1"),
		},
		err: map[string]error{
			"/ws/broken": assertErr,
		},
	}

	tracer := crossproject.New([]string{"/ws/main", "/ws/ok", "/ws/broken"}, provider, nil)

	_, err := tracer.FindCrossProjectImpacts(context.Background(), "com.example.Foo", nil)
	require.NoError(t, err)
	assert.Contains(t, tracer.DegradedProjects(), "broken")
}

func TestFindCrossProjectImpactsExcludesSpringDIFromRPCReference(t *testing.T) {
	t.Parallel()

	fqn := "com.cloudE.pay.service.PointService"

	mainIdx := model.NewSymbolIndex("/ws/pay-api", "c0")
	mainIdx.RPCMarkers[fqn] = model.MarkerDubboService

	relatedIdx := model.NewSymbolIndex("/ws/ucenter-provider", "c1")
	relatedIdx.RPCMap["com.cloudE.ucenter.PointService"] = model.RPCEntry{File: "Consumer.java", Line: 10, Kind: model.RPCKindDubbo}
	relatedIdx.RPCMap["com.cloudE.ucenter.other.PointService"] = model.RPCEntry{File: "Autowired.java", Line: 20, Kind: model.RPCKindSpringDI}

	provider := &fakeProvider{
		indices: map[string]*model.SymbolIndex{
			"/ws/pay-api":          mainIdx,
			"/ws/ucenter-provider": relatedIdx,
		},
	}

	tracer := crossproject.New([]string{"/ws/pay-api", "/ws/ucenter-provider"}, provider, nil)

	impacts, err := tracer.FindCrossProjectImpacts(context.Background(), fqn, nil)
	require.NoError(t, err)

	var rpcImpacts []model.Impact

	for _, imp := range impacts {
		if imp.Type == model.ImpactRPCReference {
			rpcImpacts = append(rpcImpacts, imp)
		}
	}

	require.Len(t, rpcImpacts, 1, "a Spring-DI injection site must not be reported as an rpc_reference")
	assert.Equal(t, "Consumer.java", rpcImpacts[0].File)
}

var assertErr = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }
