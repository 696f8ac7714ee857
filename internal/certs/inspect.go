package certs

import (
	"context"
	"fmt"

	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// X509 reads certificate files over the remote file channel and parses them locally
type X509 struct {
	remote remote.Executor
}

// NewX509 creates an inspector that needs nothing installed on the host
func NewX509(r remote.Executor) *X509 {
	return &X509{remote: r}
}

func (x *X509) Inspect(ctx context.Context, path string) (*Info, error) {
	data, err := x.remote.ReadFile(ctx, path)
	if err != nil {
		if types.IsTransport(err) {
			return nil, err
		}
		return nil, &types.AnalysisError{Path: path, Err: err}
	}
	info, err := ParsePEM(data)
	if err != nil {
		return nil, &types.AnalysisError{Path: path, Err: err}
	}
	return info, nil
}

// OpenSSL shells out to the host's openssl binary
type OpenSSL struct {
	remote remote.Executor
	// Addr is where s_client connects, usually the local nginx
	Addr string
}

// NewOpenSSL creates an openssl-backed inspector probing localhost:443
func NewOpenSSL(r remote.Executor) *OpenSSL {
	return &OpenSSL{remote: r, Addr: "localhost:443"}
}

var detailArgs = []string{"-noout", "-subject", "-issuer", "-dates"}

func (o *OpenSSL) Inspect(ctx context.Context, path string) (*Info, error) {
	args := append([]string{"x509", "-in", path}, detailArgs...)
	res, err := o.run(ctx, remote.Command("openssl", append(args, "-ext", "subjectAltName")...))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		// openssl before 1.1.1 has no -ext
		if res, err = o.run(ctx, remote.Command("openssl", args...)); err != nil {
			return nil, err
		}
	}
	if !res.OK() {
		return nil, &types.AnalysisError{Path: path, Err: fmt.Errorf("openssl: %s", res.Output())}
	}
	info, err := ParseOpenSSLText(res.Stdout)
	if err != nil {
		return nil, &types.AnalysisError{Path: path, Err: err}
	}
	return info, nil
}

// Served performs a TLS handshake with SNI serverName and reports the leaf presented
func (o *OpenSSL) Served(ctx context.Context, serverName string) (*Info, error) {
	probe := "echo | " + remote.Command("openssl", "s_client", "-connect", o.Addr, "-servername", serverName) +
		" 2>/dev/null | " + remote.Command("openssl", append([]string{"x509"}, detailArgs...)...)
	res, err := o.run(ctx, probe)
	if err != nil {
		return nil, err
	}
	source := "tls://" + o.Addr + "/" + serverName
	if !res.OK() {
		return nil, &types.AnalysisError{Path: source, Err: fmt.Errorf("no certificate presented: %s", res.Output())}
	}
	info, err := ParseOpenSSLText(res.Stdout)
	if err != nil {
		return nil, &types.AnalysisError{Path: source, Err: err}
	}
	return info, nil
}

func (o *OpenSSL) run(ctx context.Context, command string) (remote.Result, error) {
	return o.remote.Execute(ctx, command)
}

var (
	_ Inspector = (*X509)(nil)
	_ Inspector = (*OpenSSL)(nil)
	_ Prober    = (*OpenSSL)(nil)
)
