package ports_test

import (
	"testing"

	mocks "github.com/target/gatehouse/internal/mocks"
	authmocks "github.com/target/gatehouse/internal/mocks/auth"
	"github.com/target/gatehouse/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityResolver = (*authmocks.StubResolver)(nil)
	var _ ports.SessionReader = authmocks.MapSession(nil)
	var _ ports.RoleMapper = authmocks.StaticRoleMapper{}
	var _ ports.ProfileVerifier = (*authmocks.StubVerifier)(nil)
	var _ ports.SessionBackend = (*mocks.MockSessionBackend)(nil)
}
