/*
 * Copyright (c) 2022 Cisco and/or its affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at:
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package stub

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "msm.relay.v1.MediaEngine"

	// metadata keys of a Packets stream
	PeerMetadataKey = "msm-peer"
	MidMetadataKey  = "msm-mid"
)

// MediaEngineServer is the server API of the media engine service.
type MediaEngineServer interface {
	Send(MediaEngine_SendServer) error
	Packets(MediaEngine_PacketsServer) error
}

type MediaEngine_SendServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type mediaEngineSendServer struct {
	grpc.ServerStream
}

func (x *mediaEngineSendServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *mediaEngineSendServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type MediaEngine_PacketsServer interface {
	SendAndClose(*emptypb.Empty) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type mediaEnginePacketsServer struct {
	grpc.ServerStream
}

func (x *mediaEnginePacketsServer) SendAndClose(m *emptypb.Empty) error {
	return x.ServerStream.SendMsg(m)
}

func (x *mediaEnginePacketsServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _MediaEngine_Send_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(MediaEngineServer).Send(&mediaEngineSendServer{stream})
}

func _MediaEngine_Packets_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(MediaEngineServer).Packets(&mediaEnginePacketsServer{stream})
}

// MediaEngine_ServiceDesc is the grpc.ServiceDesc of the media engine
// service. Messages are protobuf well-known types.
var MediaEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MediaEngineServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Send",
			Handler:       _MediaEngine_Send_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Packets",
			Handler:       _MediaEngine_Packets_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "msm/relay/v1/media_engine.proto",
}

func RegisterMediaEngineServer(s grpc.ServiceRegistrar, srv MediaEngineServer) {
	s.RegisterService(&MediaEngine_ServiceDesc, srv)
}

// MediaEngineClient is the client API of the media engine service.
type MediaEngineClient interface {
	Send(ctx context.Context, opts ...grpc.CallOption) (MediaEngine_SendClient, error)
	Packets(ctx context.Context, opts ...grpc.CallOption) (MediaEngine_PacketsClient, error)
}

type mediaEngineClient struct {
	cc grpc.ClientConnInterface
}

func NewMediaEngineClient(cc grpc.ClientConnInterface) MediaEngineClient {
	return &mediaEngineClient{cc}
}

type MediaEngine_SendClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type mediaEngineSendClient struct {
	grpc.ClientStream
}

func (c *mediaEngineClient) Send(ctx context.Context, opts ...grpc.CallOption) (MediaEngine_SendClient, error) {
	stream, err := c.cc.NewStream(ctx, &MediaEngine_ServiceDesc.Streams[0], "/"+serviceName+"/Send", opts...)
	if err != nil {
		return nil, err
	}
	return &mediaEngineSendClient{stream}, nil
}

func (x *mediaEngineSendClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *mediaEngineSendClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type MediaEngine_PacketsClient interface {
	Send(*wrapperspb.BytesValue) error
	CloseAndRecv() (*emptypb.Empty, error)
	grpc.ClientStream
}

type mediaEnginePacketsClient struct {
	grpc.ClientStream
}

func (c *mediaEngineClient) Packets(ctx context.Context, opts ...grpc.CallOption) (MediaEngine_PacketsClient, error) {
	stream, err := c.cc.NewStream(ctx, &MediaEngine_ServiceDesc.Streams[1], "/"+serviceName+"/Packets", opts...)
	if err != nil {
		return nil, err
	}
	return &mediaEnginePacketsClient{stream}, nil
}

func (x *mediaEnginePacketsClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *mediaEnginePacketsClient) CloseAndRecv() (*emptypb.Empty, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(emptypb.Empty)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
