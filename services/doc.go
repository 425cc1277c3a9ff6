// Package services holds the API services rpcgate ships with.
//
// Each service lists its callable methods in APIMethods; the registry derives
// the public names from the type and method names, so UserAPIService.getProfile
// is called as "user.get_profile".
package services

import "github.com/mnehpets/rpcgate/jsonrpc"

// All returns every shipped service. reg backs system.methods.
func All(users UserStore, reg *jsonrpc.Registry) []jsonrpc.Service {
	return []jsonrpc.Service{
		NewUserAPIService(users),
		NewSystemAPIService(reg),
		&ProjectAPIService{},
	}
}
