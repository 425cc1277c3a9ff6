package jsonrpc

import (
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
)

// serviceSuffixes are trimmed from a service's simple name before it becomes
// the first half of a method key.
var serviceSuffixes = []string{"ApiService", "APIService"}

// Target is a resolved registry entry.
type Target struct {
	Service string
	Method  Method
}

// Registry maps dotted "service.method" keys to targets. It is filled during
// startup and sealed when a Dispatcher is built; after that it is read-only
// and safe for concurrent Resolve calls.
type Registry struct {
	targets map[string]Target
	sealed  atomic.Bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// Register adds m under the key derived from serviceID and m.Name and returns
// that key. A later registration of the same key replaces the earlier one.
func (r *Registry) Register(serviceID string, m Method) string {
	if r.sealed.Load() {
		panic("jsonrpc: register after registry was sealed: " + serviceID + "." + m.Name)
	}
	key := MethodKey(serviceID, m.Name)
	r.targets[key] = Target{Service: serviceID, Method: m}
	return key
}

// RegisterService registers every method svc declares.
func (r *Registry) RegisterService(serviceID string, svc Service) {
	for _, m := range svc.APIMethods() {
		r.Register(serviceID, m)
	}
}

// Resolve looks up a dotted method name.
func (r *Registry) Resolve(name string) (Target, bool) {
	t, ok := r.targets[name]
	return t, ok
}

// Methods returns the registered keys in sorted order.
func (r *Registry) Methods() []string {
	keys := make([]string, 0, len(r.targets))
	for k := range r.targets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (r *Registry) seal() {
	r.sealed.Store(true)
}

// MethodKey derives the registry key for a service identifier and method
// name: "pkg/service.UserApiService" and "getProfile" give "user.get_profile".
func MethodKey(serviceID, method string) string {
	name := serviceID
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		name = name[i+1:]
	}
	for _, suffix := range serviceSuffixes {
		name = strings.ReplaceAll(name, suffix, "")
	}
	return CamelToSnake(name) + "." + CamelToSnake(method)
}

// ServiceID returns the identifier used for svc: its package path and type
// name, e.g. "github.com/mnehpets/rpcgate/services.UserAPIService".
func ServiceID(svc any) string {
	t := reflect.TypeOf(svc)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
