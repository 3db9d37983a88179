package main

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
	"golang.org/x/sync/errgroup"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

func vertexBindings() []core1_0.VertexInputBindingDescription {
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(Vertex{})),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func vertexAttributes() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

// Two stacked quads, drawn when no mesh is given.
var quadVertices = []Vertex{
	{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
	{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
	{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
	{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},

	{Position: mgl32.Vec3{-0.5, -0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
	{Position: mgl32.Vec3{0.5, -0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
	{Position: mgl32.Vec3{0.5, 0.5, -0.5}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
	{Position: mgl32.Vec3{-0.5, 0.5, -0.5}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},
}

var quadIndices = []uint32{
	0, 1, 2, 2, 3, 0,
	4, 5, 6, 6, 7, 4,
}

type assets struct {
	vertexShader   []uint32
	fragmentShader []uint32

	vertices []Vertex
	indices  []uint32
	texture  image.Image
}

// loadAssets reads the shaders, the mesh and the texture concurrently.
func loadAssets(ctx context.Context, cfg config) (*assets, error) {
	a := &assets{vertices: quadVertices, indices: quadIndices}
	if !cfg.drawsGeometry() {
		return a, nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		a.vertexShader, err = loadShader(ctx, cfg.VertexShader)
		return err
	})
	group.Go(func() error {
		var err error
		a.fragmentShader, err = loadShader(ctx, cfg.FragmentShader)
		return err
	})
	if cfg.Mesh != "" {
		group.Go(func() error {
			var err error
			a.vertices, a.indices, err = loadMesh(ctx, cfg.Mesh, cfg.Material)
			return err
		})
	}

	if cfg.Texture != "" {
		group.Go(func() error {
			var err error
			a.texture, err = loadTexture(ctx, cfg.Texture)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return a, nil
}

func loadTexture(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", path)
	}
	return img, nil
}

func loadShader(ctx context.Context, path string) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read shader")
	}
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("%s is not SPIR-V: %d bytes", path, len(b))
	}
	return bytesToBytecode(b), nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

func loadMesh(ctx context.Context, meshPath, materialPath string) ([]Vertex, []uint32, error) {
	meshFile, err := os.Open(meshPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open mesh")
	}
	defer meshFile.Close()

	var materials io.Reader = strings.NewReader("")
	if materialPath != "" {
		matFile, err := os.Open(materialPath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open material library")
		}
		defer matFile.Close()
		materials = matFile
	}

	decoder, err := obj.DecodeReader(meshFile, materials)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decode mesh %s", meshPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m := &meshBuilder{decoder: decoder, unique: make(map[int]uint32)}
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			// Faces are fanned into triangles
			for i := 2; i < len(face.Vertices); i++ {
				m.addVertex(face, 0)
				m.addVertex(face, i-1)
				m.addVertex(face, i)
			}
		}
	}
	if len(m.indices) == 0 {
		return nil, nil, errors.Newf("mesh %s has no faces", meshPath)
	}
	return m.vertices, m.indices, nil
}

type meshBuilder struct {
	decoder  *obj.Decoder
	unique   map[int]uint32
	vertices []Vertex
	indices  []uint32
}

func (m *meshBuilder) addVertex(face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	index, exists := m.unique[vertInd]

	if !exists {
		vert := Vertex{Position: mgl32.Vec3{
			m.decoder.Vertices[vertInd*3],
			m.decoder.Vertices[vertInd*3+1],
			m.decoder.Vertices[vertInd*3+2],
		}, Color: mgl32.Vec3{1, 1, 1}}

		// OBJ puts the V origin at the bottom, Vulkan samples from the top
		if faceIndex < len(face.Uvs) {
			if uvInd := face.Uvs[faceIndex]; uvInd >= 0 && uvInd*2+1 < len(m.decoder.Uvs) {
				vert.TexCoord = mgl32.Vec2{
					m.decoder.Uvs[uvInd*2],
					1 - m.decoder.Uvs[uvInd*2+1],
				}
			}
		}

		index = uint32(len(m.vertices))
		m.vertices = append(m.vertices, vert)
		m.unique[vertInd] = index
	}

	m.indices = append(m.indices, index)
}
