//go:build e2e

package e2e

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startAuthServer starts a server with authentication enabled on port 18081
func startAuthServer(t *testing.T) {
	t.Helper()

	cmd := exec.CommandContext(context.Background(), binaryPath,
		"--db="+authDBPath,
		"--listen=:18081",
		"--auth.password-hash="+passwordHash,
		"--host=e2e-auth-test",
	)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	require.NoError(t, waitForServer(authBaseURL+"/ping", 10*time.Second))
}

func TestAuth_LoginLogout(t *testing.T) {
	startAuthServer(t)
	page := newPage(t)

	t.Run("dashboard redirects to login", func(t *testing.T) {
		_, err := page.Goto(authBaseURL)
		require.NoError(t, err)
		require.NoError(t, page.WaitForURL(authBaseURL+"/login"))
		waitVisible(t, page.Locator("input[name='password']"))
	})

	t.Run("wrong password shows error", func(t *testing.T) {
		require.NoError(t, page.Locator("input[name='password']").Fill("wrong"))
		require.NoError(t, page.Locator("button[type='submit']").Click())
		waitVisible(t, page.Locator(".login-form .error"))
		text, err := page.Locator(".login-form .error").TextContent()
		require.NoError(t, err)
		assert.Contains(t, text, "Invalid password")
	})

	t.Run("correct password opens dashboard", func(t *testing.T) {
		require.NoError(t, page.Locator("input[name='password']").Fill(testPassword))
		require.NoError(t, page.Locator("button[type='submit']").Click())
		require.NoError(t, page.WaitForURL(authBaseURL+"/"))
		waitVisible(t, page.Locator("#locations"))
	})

	t.Run("logout returns to login", func(t *testing.T) {
		require.NoError(t, page.Locator("a", playwright.PageLocatorOptions{HasText: "logout"}).Click())
		require.NoError(t, page.WaitForURL(authBaseURL+"/login"))
	})
}
