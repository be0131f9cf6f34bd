// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugins

import (
	"context"
	"fmt"
	"net/rpc"

	"github.com/hashicorp/go-hclog"
	hcplugin "github.com/hashicorp/go-plugin"
)

// pluginLogger routes go-plugin's own internal client/server chatter
// through hclog rather than its default stderr writer, so it lines up with
// the rest of this process's logging instead of bypassing it.
var pluginLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "omnicore-plugin",
	Level: hclog.Info,
})

// EmbedderProvider is implemented by an out-of-process embedding backend.
// A plugin author links this package, implements EmbedderProvider, and
// calls ServeEmbedderPlugin from their executable's main().
type EmbedderProvider interface {
	Initialize(ctx context.Context, config map[string]string) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) error
}

// Handshake is the magic-cookie pair that keeps a plugin process from being
// invoked as a stand-alone program by accident.
var Handshake = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "OMNI_EMBEDDER_PLUGIN",
	MagicCookieValue: "omni_embedder_plugin_v1",
}

const embedderPluginKey = "embedder"

// embedderRPCArgs/Reply carry net/rpc calls across the plugin boundary.
// go-plugin's net/rpc transport gob-encodes these structs; no hand-rolled
// wire format is needed (unlike its gRPC transport, which requires
// protoc-generated bindings the original pack did not retrieve for this
// service).
type embedderInitArgs struct{ Config map[string]string }
type embedderEmbedArgs struct{ Texts []string }
type embedderEmbedReply struct{ Vectors [][]float32 }
type embedderDimensionReply struct{ Dimension int }

// EmbedderRPCServer is the subprocess-side net/rpc server wrapping an
// EmbedderProvider implementation.
type EmbedderRPCServer struct {
	Impl EmbedderProvider
}

func (s *EmbedderRPCServer) Initialize(args embedderInitArgs, _ *struct{}) error {
	return s.Impl.Initialize(context.Background(), args.Config)
}

func (s *EmbedderRPCServer) Embed(args embedderEmbedArgs, reply *embedderEmbedReply) error {
	vectors, err := s.Impl.Embed(context.Background(), args.Texts)
	if err != nil {
		return err
	}
	reply.Vectors = vectors
	return nil
}

func (s *EmbedderRPCServer) Dimension(_ struct{}, reply *embedderDimensionReply) error {
	dim, err := s.Impl.Dimension(context.Background())
	if err != nil {
		return err
	}
	reply.Dimension = dim
	return nil
}

func (s *EmbedderRPCServer) Shutdown(_ struct{}, _ *struct{}) error {
	return s.Impl.Shutdown(context.Background())
}

func (s *EmbedderRPCServer) Health(_ struct{}, _ *struct{}) error {
	return s.Impl.Health(context.Background())
}

// embedderRPCClient is the host-side net/rpc stub implementing EmbedderProvider
// by calling across the plugin boundary.
type embedderRPCClient struct{ client *rpc.Client }

func (c *embedderRPCClient) Initialize(_ context.Context, config map[string]string) error {
	return c.client.Call("Plugin.Initialize", embedderInitArgs{Config: config}, &struct{}{})
}

func (c *embedderRPCClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	var reply embedderEmbedReply
	if err := c.client.Call("Plugin.Embed", embedderEmbedArgs{Texts: texts}, &reply); err != nil {
		return nil, err
	}
	return reply.Vectors, nil
}

func (c *embedderRPCClient) Dimension(_ context.Context) (int, error) {
	var reply embedderDimensionReply
	if err := c.client.Call("Plugin.Dimension", struct{}{}, &reply); err != nil {
		return 0, err
	}
	return reply.Dimension, nil
}

func (c *embedderRPCClient) Shutdown(_ context.Context) error {
	return c.client.Call("Plugin.Shutdown", struct{}{}, &struct{}{})
}

func (c *embedderRPCClient) Health(_ context.Context) error {
	return c.client.Call("Plugin.Health", struct{}{}, &struct{}{})
}

// EmbedderPlugin is the hcplugin.Plugin implementation shared by both the
// host (dispensing a client stub) and the plugin executable (serving Impl).
type EmbedderPlugin struct {
	Impl EmbedderProvider
}

func (p *EmbedderPlugin) Server(*hcplugin.MuxBroker) (interface{}, error) {
	return &EmbedderRPCServer{Impl: p.Impl}, nil
}

func (p *EmbedderPlugin) Client(_ *hcplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &embedderRPCClient{client: c}, nil
}

// ServeEmbedderPlugin is the entry point for a plugin executable's main():
//
//	func main() { plugins.ServeEmbedderPlugin(&myEmbedderProvider{}) }
func ServeEmbedderPlugin(impl EmbedderProvider) {
	hcplugin.Serve(&hcplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hcplugin.Plugin{
			embedderPluginKey: &EmbedderPlugin{Impl: impl},
		},
		Logger: pluginLogger,
	})
}

// Load launches the plugin executable at path and returns its EmbedderProvider
// client stub plus the underlying hcplugin.Client (caller must Kill() it).
func Load(path string) (EmbedderProvider, *hcplugin.Client, error) {
	client := hcplugin.NewClient(&hcplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hcplugin.Plugin{
			embedderPluginKey: &EmbedderPlugin{},
		},
		Cmd:    pluginCommand(path),
		Logger: pluginLogger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("connect to embedder plugin %q: %w", path, err)
	}

	raw, err := rpcClient.Dispense(embedderPluginKey)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("dispense embedder plugin %q: %w", path, err)
	}

	provider, ok := raw.(EmbedderProvider)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %q does not implement EmbedderProvider", path)
	}

	return provider, client, nil
}
