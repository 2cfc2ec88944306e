//go:build !embedded

// Package geth provides a go-ethereum JSON-RPC implementation of execution.Source.
package geth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/callflow/pkg/common"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

// Compile-time check that RPCNode implements execution.Source interface.
var _ execution.Source = (*RPCNode)(nil)

// headerTransport adds custom headers to requests and respects context cancellation.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Add custom headers
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	// Check if context is already cancelled before making request
	if req.Context().Err() != nil {
		return nil, req.Context().Err()
	}

	// Make the request with context
	return t.base.RoundTrip(req)
}

// RPCNode implements execution.Source using JSON-RPC connections.
type RPCNode struct {
	config    *execution.Config
	log       logrus.FieldLogger
	client    *ethclient.Client
	rpcClient *rpc.Client

	mu         sync.RWMutex
	clientType execution.ClientType
}

// NewRPCNode creates a new RPC-based execution node.
func NewRPCNode(log logrus.FieldLogger, conf *execution.Config) *RPCNode {
	return &RPCNode{
		config:     conf,
		log:        log.WithFields(logrus.Fields{"type": "execution", "source": conf.Name}),
		clientType: conf.Client,
	}
}

// Start dials the node and, when no client type is configured, detects it
// from web3_clientVersion.
func (n *RPCNode) Start(ctx context.Context) error {
	n.log.WithField("node_address", n.config.NodeAddress).Info("Starting execution node")

	// Create HTTP client without fixed timeout - let context handle it
	httpClient := http.Client{
		Transport: &headerTransport{
			headers: n.config.NodeHeaders,
			base: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}

	rpcClient, err := rpc.DialOptions(ctx, n.config.NodeAddress, rpc.WithHTTPClient(&httpClient))
	if err != nil {
		n.log.WithError(err).Error("Failed to create RPC client")

		return fmt.Errorf("failed to create RPC client for %s: %w", n.config.NodeAddress, err)
	}

	n.rpcClient = rpcClient
	n.client = ethclient.NewClient(rpcClient)

	if n.ClientType() != "" {
		return nil
	}

	clientType, err := n.detectClientType(ctx)
	if err != nil {
		return fmt.Errorf("failed to detect client type of %s: %w", n.config.Name, err)
	}

	n.mu.Lock()
	n.clientType = clientType
	n.mu.Unlock()

	n.log.WithField("client_type", clientType).Info("Detected execution client type")

	return nil
}

// Stop closes the RPC connection.
func (n *RPCNode) Stop(_ context.Context) error {
	n.log.Info("Stopping execution node")

	if n.rpcClient != nil {
		n.rpcClient.Close()
	}

	return nil
}

// Name returns the configured name for this node.
func (n *RPCNode) Name() string {
	return n.config.Name
}

// ClientType returns the configured or detected client type.
func (n *RPCNode) ClientType() execution.ClientType {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.clientType
}

func (n *RPCNode) detectClientType(ctx context.Context) (execution.ClientType, error) {
	var version string

	err := n.retry(ctx, "web3_clientVersion", func(ctx context.Context) error {
		return n.rpcClient.CallContext(ctx, &version, "web3_clientVersion")
	})
	if err != nil {
		return "", err
	}

	return parseClientVersion(version), nil
}

// parseClientVersion maps a web3_clientVersion string such as
// "Geth/v1.15.11-stable/linux-amd64/go1.24.1" to a client type.
func parseClientVersion(version string) execution.ClientType {
	name := strings.ToLower(strings.SplitN(version, "/", 2)[0])

	switch {
	case strings.Contains(name, "geth"):
		return execution.ClientGeth
	case strings.Contains(name, "anvil"):
		return execution.ClientAnvil
	case strings.Contains(name, "hardhat"):
		return execution.ClientHardhat
	case strings.Contains(name, "nethermind"):
		return execution.ClientNethermind
	case strings.Contains(name, "reth"):
		return execution.ClientReth
	case strings.Contains(name, "besu"):
		return execution.ClientBesu
	case strings.Contains(name, "openethereum"), strings.Contains(name, "parity"):
		return execution.ClientOpenEthereum
	default:
		return execution.ClientErigon
	}
}

// retry runs op with exponential backoff, recording RPC metrics for every attempt.
// Not-found results are permanent and are not retried.
func (n *RPCNode) retry(ctx context.Context, method string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = n.config.MaxRetryElapsed

	attempt := 0

	operation := func() error {
		attempt++

		if attempt > 1 {
			pcommon.RetryCount.WithLabelValues(n.config.Name, method).Inc()
		}

		callCtx := ctx

		if n.config.Timeout > 0 {
			var cancel context.CancelFunc

			callCtx, cancel = context.WithTimeout(ctx, n.config.Timeout)
			defer cancel()
		}

		start := time.Now()
		err := op(callCtx)
		duration := time.Since(start)

		// Record RPC metrics
		status := statusSuccess
		if err != nil {
			status = statusError
		}

		pcommon.RPCCallDuration.WithLabelValues(n.config.Name, method, status).Observe(duration.Seconds())
		pcommon.RPCCallsTotal.WithLabelValues(n.config.Name, method, status).Inc()

		if err == nil {
			return nil
		}

		if errors.Is(err, execution.ErrTransactionNotFound) || errors.Is(err, execution.ErrTraceNotFound) {
			return backoff.Permanent(err)
		}

		n.log.WithError(err).WithFields(logrus.Fields{
			"method":  method,
			"attempt": attempt,
		}).Warn("RPC call failed, will retry")

		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
