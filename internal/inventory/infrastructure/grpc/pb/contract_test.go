package pb

import (
	"os"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	messageRe = regexp.MustCompile(`(?s)message (\w+) \{(.*?)\}`)
	fieldRe   = regexp.MustCompile(`(?:repeated )?\w+ (\w+) = \d+;`)
	rpcRe     = regexp.MustCompile(`rpc (\w+)\((\w+)\) returns \((\w+)\);`)
)

func readContract(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(InventoryService_ServiceDesc.Metadata.(string))
	require.NoError(t, err)
	return string(raw)
}

func jsonFields(v any) []string {
	typ := reflect.TypeOf(v)
	out := make([]string, 0, typ.NumField())
	for i := range typ.NumField() {
		out = append(out, strings.Split(typ.Field(i).Tag.Get("json"), ",")[0])
	}
	return out
}

func TestContractDeclaresService(t *testing.T) {
	src := readContract(t)
	pkg, svc, _ := strings.Cut(ServiceName, ".v1.")
	assert.Contains(t, src, "package "+pkg+".v1;")
	assert.Contains(t, src, "service "+svc+" {")

	rpcs := map[string][2]string{}
	for _, m := range rpcRe.FindAllStringSubmatch(src, -1) {
		rpcs[m[1]] = [2]string{m[2], m[3]}
	}
	require.Len(t, rpcs, len(InventoryService_ServiceDesc.Methods))
	for _, m := range InventoryService_ServiceDesc.Methods {
		sig, ok := rpcs[m.MethodName]
		require.True(t, ok, m.MethodName)
		assert.Equal(t, [2]string{m.MethodName + "Request", m.MethodName + "Response"}, sig)
	}
}

func TestContractMatchesWireFields(t *testing.T) {
	src := readContract(t)
	declared := map[string][]string{}
	for _, m := range messageRe.FindAllStringSubmatch(src, -1) {
		for _, f := range fieldRe.FindAllStringSubmatch(m[2], -1) {
			declared[m[1]] = append(declared[m[1]], f[1])
		}
	}

	for _, msg := range []any{
		CheckAvailabilityRequest{},
		CheckAvailabilityResponse{},
		CheckAvailabilityBatchRequest{},
		SKUAvailability{},
		CheckAvailabilityBatchResponse{},
	} {
		name := reflect.TypeOf(msg).Name()
		assert.Equal(t, declared[name], jsonFields(msg), name)
	}
	assert.Len(t, declared, 5)
}
