package mssql

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/rowjay/mssql-restore/internal/config"
	"github.com/rowjay/mssql-restore/internal/util"
)

// Sqlcmd drives the sqlcmd client binary. Output is requested headerless
// (-h -1), pipe-separated (-s"|") and with trailing whitespace trimmed (-W)
// so downstream parsing sees a stable column layout. -b makes sqlcmd exit
// non-zero when the engine raises an error.
type Sqlcmd struct {
	cfg config.ServerConfig
}

func NewSqlcmd(cfg config.ServerConfig) *Sqlcmd {
	return &Sqlcmd{cfg: cfg}
}

// Run executes one T-SQL batch and returns merged stdout/stderr plus the
// client's exit code. Blocking; cancellation comes from ctx.
func (s *Sqlcmd) Run(ctx context.Context, query string) (QueryResult, error) {
	args := []string{
		"-S", s.serverAddress(),
		"-b",
		"-h", "-1",
		"-W",
		"-s", "|",
		"-Q", query,
	}
	if s.cfg.Username != "" {
		args = append(args, "-U", s.cfg.Username)
	}
	if s.cfg.TrustCertificate {
		args = append(args, "-C")
	}
	if s.cfg.Encrypt {
		args = append(args, "-N")
	}
	if s.cfg.ConnectionTimeout > 0 {
		args = append(args, "-l", strconv.Itoa(int(s.cfg.ConnectionTimeout.Seconds())))
	}

	env := map[string]string{}
	if s.cfg.Password != "" {
		// Passed via env so the password never shows up in process listings.
		env["SQLCMDPASSWORD"] = s.cfg.Password
	}

	cmd := util.Command(ctx, s.cfg.SqlcmdPath, args, env)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		code := util.CmdExitCode(err)
		if code < 0 {
			return QueryResult{}, fmt.Errorf("invoke %s: %w", s.cfg.SqlcmdPath, err)
		}
		return QueryResult{Output: out.String(), ExitCode: code}, nil
	}
	return QueryResult{Output: out.String(), ExitCode: 0}, nil
}

func (s *Sqlcmd) serverAddress() string {
	if s.cfg.Instance != "" {
		return s.cfg.Host + `\` + s.cfg.Instance
	}
	if s.cfg.Port != 0 && s.cfg.Port != 1433 {
		return fmt.Sprintf("%s,%d", s.cfg.Host, s.cfg.Port)
	}
	return s.cfg.Host
}
