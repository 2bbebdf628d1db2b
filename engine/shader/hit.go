package shader

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
)

// Surface is the interpolated hit point of a triangle.
type Surface struct {
	Position common.Vec3
	Normal   common.Vec3
	TexCoord [2]float32
	// Barycentrics weights the three vertices; the smallest marks the nearest edge.
	Barycentrics [3]float32
}

// TriangleIndices returns the vertex indices of a primitive. A null index buffer means a
// non-indexed list where primitive p uses vertices 3p, 3p+1 and 3p+2.
func TriangleIndices(dc gpu.DispatchContext, ib gpu.DeviceAddress, prim uint32) [3]uint32 {
	if ib.IsNull() {
		return [3]uint32{3 * prim, 3*prim + 1, 3*prim + 2}
	}
	raw := dc.Load(ib.Offset(uint64(prim)*3*model.IndexSize), 3*model.IndexSize)
	return [3]uint32{
		binary.LittleEndian.Uint32(raw[0:]),
		binary.LittleEndian.Uint32(raw[4:]),
		binary.LittleEndian.Uint32(raw[8:]),
	}
}

func fetchVertex(dc gpu.DispatchContext, vb gpu.DeviceAddress, index uint32) model.GPUVertex {
	v, err := model.UnmarshalGPUVertex(dc.Load(vb.Offset(uint64(index)*model.VertexStride), model.VertexStride))
	if err != nil {
		panic(err)
	}
	return v
}

// worldNormal transforms an object-space normal by the inverse transpose of the
// object-to-world transform.
func worldNormal(worldToObject common.Mat3x4, n common.Vec3) common.Vec3 {
	w := worldToObject
	return common.Vec3{
		w[0]*n[0] + w[4]*n[1] + w[8]*n[2],
		w[1]*n[0] + w[5]*n[1] + w[9]*n[2],
		w[2]*n[0] + w[6]*n[1] + w[10]*n[2],
	}.Normalize()
}

func interpolate(dc gpu.DispatchContext, vb, ib gpu.DeviceAddress, ray gpu.Ray, hit gpu.Hit) Surface {
	idx := TriangleIndices(dc, ib, hit.PrimitiveIndex)
	var vs [3]model.GPUVertex
	for k := range vs {
		vs[k] = fetchVertex(dc, vb, idx[k])
	}
	b := [3]float32{1 - hit.Barycentrics[0] - hit.Barycentrics[1], hit.Barycentrics[0], hit.Barycentrics[1]}

	var n common.Vec3
	var uv [2]float32
	for k, v := range vs {
		n = n.Add(common.Vec3{v.Normal[0], v.Normal[1], v.Normal[2]}.Scale(b[k]))
		uv[0] += v.TexCoord[0] * b[k]
		uv[1] += v.TexCoord[1] * b[k]
	}
	n = worldNormal(hit.WorldToObject, n)
	if n.Dot(ray.Direction) > 0 {
		n = n.Scale(-1)
	}
	return Surface{Position: ray.At(hit.T), Normal: n, TexCoord: uv, Barycentrics: b}
}

func loadLight(dc gpu.DispatchContext, addr gpu.DeviceAddress) light.GPULight {
	l, err := light.UnmarshalGPULight(dc.Load(addr, light.GPULightSize))
	if err != nil {
		panic(err)
	}
	return l
}

func loadMaterial(dc gpu.DispatchContext, addr gpu.DeviceAddress) material.GPUMaterial {
	m, err := material.UnmarshalGPUMaterial(dc.Load(addr, material.GPUMaterialSize))
	if err != nil {
		panic(err)
	}
	return m
}

func rgb(c [4]float32) common.Vec3 {
	return common.Vec3{c[0], c[1], c[2]}
}

// Shade evaluates the Phong model of a point light with distance attenuation.
//
// Parameters:
//   - l: the lighting block
//   - m: the material block
//   - base: surface color after texturing
//   - s: the surface
//   - view: direction of the incoming ray
//   - visibility: fraction of the light not occluded
//
// Returns:
//   - common.Vec3: the lit color
func Shade(l light.GPULight, m material.GPUMaterial, base common.Vec3, s Surface, view common.Vec3, visibility float32) common.Vec3 {
	ambient := base.Mul(rgb(l.Ambient))

	toLight := common.Vec3{l.Position[0], l.Position[1], l.Position[2]}.Sub(s.Position)
	dist := toLight.Len()
	if dist == 0 || (l.PointLightRange > 0 && dist > l.PointLightRange) {
		return ambient
	}
	ldir := toLight.Scale(1 / dist)
	atten := float32(1)
	if l.PointLightRange > 0 {
		atten = common.Clamp(1-dist/l.PointLightRange, 0, 1)
	}
	atten *= visibility

	ndotl := max(s.Normal.Dot(ldir), 0)
	diffuse := base.Mul(rgb(l.Diffuse)).Scale(ndotl)

	var specular common.Vec3
	if ndotl > 0 && m.Shininess > 0 {
		r := ldir.Scale(-1).Reflect(s.Normal)
		rv := max(r.Dot(view.Scale(-1)), 0)
		specular = rgb(l.Specular).Scale(float32(math.Pow(float64(rv), float64(m.Shininess))) * l.SpecularPower)
	}
	return ambient.Add(diffuse.Add(specular).Scale(atten))
}

// jitter returns a deterministic point in the unit ball for a launch index and sample.
func jitter(index [3]uint32, sample uint32, depth uint32) common.Vec3 {
	h := index[0]*73856093 ^ index[1]*19349663 ^ sample*83492791 ^ depth*2654435761
	next := func() float32 {
		h ^= h << 13
		h ^= h >> 17
		h ^= h << 5
		return float32(h&0xFFFFFF)/float32(0xFFFFFF)*2 - 1
	}
	for range 8 {
		p := common.Vec3{next(), next(), next()}
		if p.Dot(p) <= 1 {
			return p
		}
	}
	return common.Vec3{}
}

// visibility traces shadow rays toward the light, jittered over its soft radius.
func visibility(cfg Config, dc gpu.DispatchContext, heap gpu.DeviceAddress, l light.GPULight, s Surface) float32 {
	center := common.Vec3{l.Position[0], l.Position[1], l.Position[2]}
	origin := s.Position.Add(s.Normal.Scale(rayEpsilon))
	count := max(l.ShadowRayCount, 1)

	lit := 0
	for i := uint32(0); i < count; i++ {
		target := center
		if l.Position[3] > 0 {
			target = target.Add(jitter(dc.DispatchRaysIndex(), i, dc.RecursionDepth()).Scale(l.Position[3]))
		}
		toLight := target.Sub(origin)
		dist := toLight.Len()
		if dist <= rayEpsilon {
			lit++
			continue
		}
		payload := &ShadowInfo{}
		ray := gpu.Ray{Origin: origin, Direction: toLight.Scale(1 / dist), TMax: dist - rayEpsilon}
		dc.TraceRay(traceDesc(cfg, heap, RayTypeShadow, gpu.RayFlagAcceptFirstHitAndEndSearch, ray), payload)
		if !payload.Occluded {
			lit++
		}
	}
	return float32(lit) / float32(count)
}

func closestHit(cfg Config) gpu.ClosestHitFunc {
	return func(dc gpu.DispatchContext, ray gpu.Ray, hit gpu.Hit, payload any) {
		p := payload.(*HitInfo)
		heap := dc.RootArgument(ArgHeap)
		l := loadLight(dc, dc.RootArgument(ArgLighting))
		m := loadMaterial(dc, dc.RootArgument(ArgMaterial))
		s := interpolate(dc, dc.RootArgument(ArgVertexBuffer), dc.RootArgument(ArgIndexBuffer), ray, hit)

		if m.TriOutline != 0 && min(s.Barycentrics[0], s.Barycentrics[1], s.Barycentrics[2]) < m.TriThickness {
			p.Color = m.TriColour
			return
		}

		base := rgb(m.ObjectColour)
		if tex := dc.RootArgument(ArgTexture); m.Texture != 0 && !tex.IsNull() {
			d := dc.Descriptor(tex)
			if d.Kind == gpu.DescriptorTexture {
				base = base.Mul(rgb(dc.SampleTexture(d.Texture, s.TexCoord[0], s.TexCoord[1])))
			}
		}

		canTrace := dc.RecursionDepth() < cfg.MaxRecursionDepth
		vis := float32(1)
		if cfg.ShadowRays && l.Shadows != 0 && canTrace {
			vis = visibility(cfg, dc, heap, l, s)
		}
		color := Shade(l, m, base, s, ray.Direction, vis)

		if m.Reflection != 0 && p.Depth < m.MaxRecursionDepth && canTrace {
			bounce := &HitInfo{Depth: p.Depth + 1}
			reflected := gpu.Ray{
				Origin:    s.Position.Add(s.Normal.Scale(rayEpsilon)),
				Direction: ray.Direction.Reflect(s.Normal).Normalize(),
				TMax:      primaryTMax,
			}
			dc.TraceRay(traceDesc(cfg, heap, RayTypePrimary, gpu.RayFlagNone, reflected), bounce)
			color = bounce.Color.Lerp(color, common.Clamp(m.Roughness, 0, 1))
		}
		p.Color = color
	}
}

func shadowHit(_ gpu.DispatchContext, _ gpu.Ray, _ gpu.Hit, payload any) {
	payload.(*ShadowInfo).Occluded = true
}
