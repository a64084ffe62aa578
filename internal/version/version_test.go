package version

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestHelperProcess isn't a real test. It's used to mock exec.CommandContext.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) < 3 || args[0] != "git" || args[1] != "describe" {
		os.Exit(0)
	}

	switch args[2] {
	case "--always":
		if os.Getenv("MOCK_GIT_COMMIT_FAIL") == "1" {
			os.Exit(1)
		}
		os.Stdout.WriteString("mock-commit-hash")
	case "--tags":
		if os.Getenv("MOCK_GIT_VERSION_FAIL") == "1" {
			os.Exit(1)
		}
		if os.Getenv("MOCK_GIT_VERSION_EMPTY") != "1" {
			os.Stdout.WriteString("v1.0.0")
		}
	}
}

func mockExecCommand(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	// Pass through specific environment variables to control the mock
	for _, key := range []string{"MOCK_GIT_COMMIT_FAIL", "MOCK_GIT_VERSION_FAIL", "MOCK_GIT_VERSION_EMPTY"} {
		if val := os.Getenv(key); val != "" {
			cmd.Env = append(cmd.Env, key+"="+val)
		}
	}
	return cmd
}

func TestInfo(t *testing.T) {
	origExecCommand := execCommand
	defer func() { execCommand = origExecCommand }()
	execCommand = mockExecCommand

	tests := []struct {
		name           string
		env            string
		expectedVer    string
		expectedCommit string
	}{
		{name: "Success", expectedVer: "1.0.0", expectedCommit: "mock-commit-hash"},
		{name: "CommitFail", env: "MOCK_GIT_COMMIT_FAIL", expectedVer: "1.0.0", expectedCommit: "unknown"},
		{name: "VersionFail", env: "MOCK_GIT_VERSION_FAIL", expectedVer: "dev", expectedCommit: "mock-commit-hash"},
		{name: "VersionEmpty", env: "MOCK_GIT_VERSION_EMPTY", expectedVer: "dev", expectedCommit: "mock-commit-hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			defer Reset()
			if tt.env != "" {
				t.Setenv(tt.env, "1")
			}

			if got := GetVersion(); got != tt.expectedVer {
				t.Errorf("GetVersion() = %v, want %v", got, tt.expectedVer)
			}
			if got := GetCommit(); got != tt.expectedCommit {
				t.Errorf("GetCommit() = %v, want %v", got, tt.expectedCommit)
			}

			info := Info()
			if !strings.HasPrefix(info, "minimax-status "+tt.expectedVer) {
				t.Errorf("Info() = %q", info)
			}
		})
	}
}

func TestLdflagsWin(t *testing.T) {
	Reset()
	defer Reset()
	Version, Commit, Date = "2.3.4", "abc123", "2026-01-01"

	if got := GetVersion(); got != "2.3.4" {
		t.Errorf("GetVersion() = %q, want ldflags value", got)
	}
	if got := GetCommit(); got != "abc123" {
		t.Errorf("GetCommit() = %q, want ldflags value", got)
	}
}

func TestGetDate(t *testing.T) {
	Reset()
	defer Reset()
	if d := GetDate(); d == "" {
		t.Error("GetDate() returned empty string")
	}
}
