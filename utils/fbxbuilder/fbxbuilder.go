// Package fbxbuilder assembles binary FBX 7.4 documents holding limb node hierarchies.
package fbxbuilder

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	fbxVersion = 7400
	creator    = "bvh_player FBX writer"
	appName    = "bvh_player"
	appVersion = "1.0"
	firstId    = 1000000
)

// Unit scale factors are centimetres per document unit.
const (
	UnitCentimeters = 1.0
	UnitInches      = 2.54
	UnitMeters      = 100.0
)

var fileId = []byte{
	0x62, 0x76, 0x68, 0x5f, 0x70, 0x6c, 0x61, 0x79,
	0x65, 0x72, 0x2d, 0x66, 0x62, 0x78, 0x37, 0x34}

type Settings struct {
	FileName string
	// UnitScale is one of the Unit* constants, UnitCentimeters when zero.
	UnitScale float64
	// FrameRate becomes the document custom frame rate when positive.
	FrameRate float64
	// Stamp is written as creation time. The zero value gives reproducible output.
	Stamp time.Time
}

type FBXBuilder struct {
	doc    *fbx.FBX
	models map[string]int64
	lastId int64

	objects     *fbx.Node
	connections *fbx.Node
}

func New(settings Settings) *FBXBuilder {
	if settings.UnitScale <= 0 {
		settings.UnitScale = UnitCentimeters
	}
	if settings.Stamp.IsZero() {
		settings.Stamp = time.Unix(0, 0).UTC()
	}

	f := &FBXBuilder{
		doc:         fbx.NewFBX(fbxVersion),
		models:      make(map[string]int64),
		lastId:      firstId,
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	f.Root().AddNodes(
		headerExtension(settings),
		bfbx73.FileId(fileId),
		bfbx73.CreationTime(settings.Stamp.Format("2006-01-02 15:04:05:000")),
		bfbx73.Creator(creator),
		globalSettings(settings),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		definitions(),
		f.objects,
		f.connections,
		bfbx73.Takes().AddNodes(
			bfbx73.Current(""),
		),
	)
	return f
}

func headerExtension(s Settings) *fbx.Node {
	gmt := s.Stamp.UTC().Format("01/02/2006 15:04:05.000")
	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(fbxVersion),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(int32(s.Stamp.Year())),
			bfbx73.Month(int32(s.Stamp.Month())),
			bfbx73.Day(int32(s.Stamp.Day())),
			bfbx73.Hour(int32(s.Stamp.Hour())),
			bfbx73.Minute(int32(s.Stamp.Minute())),
			bfbx73.Second(int32(s.Stamp.Second())),
			bfbx73.Millisecond(0),
		),
		bfbx73.Creator(creator),
		bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			bfbx73.MetaData().AddNodes(
				bfbx73.Version(100),
				bfbx73.Title(filepath.Base(s.FileName)),
				bfbx73.Subject("skeleton pose"),
				bfbx73.Author(""),
				bfbx73.Keywords("bvh"),
				bfbx73.Revision(""),
				bfbx73.Comment(""),
			),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("DocumentUrl", "KString", "Url", "", s.FileName),
				bfbx73.P("SrcDocumentUrl", "KString", "Url", "", s.FileName),
				bfbx73.P("Original", "Compound", "", ""),
				bfbx73.P("Original|ApplicationVendor", "KString", "", "", appName),
				bfbx73.P("Original|ApplicationName", "KString", "", "", appName),
				bfbx73.P("Original|ApplicationVersion", "KString", "", "", appVersion),
				bfbx73.P("Original|DateTime_GMT", "DateTime", "", "", gmt),
				bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(s.FileName)),
			),
		),
	)
}

// BVH data is Y up, Z front, right handed.
func globalSettings(s Settings) *fbx.Node {
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("UpAxis", "int", "Integer", "", int32(1)),
		bfbx73.P("UpAxisSign", "int", "Integer", "", int32(1)),
		bfbx73.P("FrontAxis", "int", "Integer", "", int32(2)),
		bfbx73.P("FrontAxisSign", "int", "Integer", "", int32(1)),
		bfbx73.P("CoordAxis", "int", "Integer", "", int32(0)),
		bfbx73.P("CoordAxisSign", "int", "Integer", "", int32(1)),
		bfbx73.P("UnitScaleFactor", "double", "Number", "", s.UnitScale),
		bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", s.UnitScale),
	)
	if s.FrameRate > 0 {
		// 14 is the custom time mode
		props.AddNodes(
			bfbx73.P("TimeMode", "enum", "", "", int32(14)),
			bfbx73.P("CustomFrameRate", "double", "Number", "", s.FrameRate),
		)
	}
	return bfbx73.GlobalSettings().AddNodes(bfbx73.Version(1000), props)
}

func definitions() *fbx.Node {
	return bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(
			bfbx73.Count(1),
		),
		bfbx73.ObjectType("Model").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxNode").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("RotationOrder", "enum", "", "", int32(0)),
					bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
					bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
				),
			),
		),
		bfbx73.ObjectType("NodeAttribute").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxSkeleton").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("Size", "double", "Number", "", float64(100)),
					bfbx73.P("LimbLength", "double", "Number", "H", float64(1)),
				),
			),
		),
	)
}

// updateDefinitions rewrites the per type object counts from the objects added so far.
func (f *FBXBuilder) updateDefinitions() {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}

	defs := f.Root().GetNode("Definitions")
	total := int32(1) // GlobalSettings
	for name, count := range counts {
		total += count

		var objectType *fbx.Node
		for _, ot := range defs.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			defs.AddNode(objectType)
		}
		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}
	defs.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
	log.Debug().Str("component", "fbx").Int32("objects", total).Msg("definitions")
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.doc.Root
}

// AddModelId remembers the model node id created for a named joint.
func (f *FBXBuilder) AddModelId(name string, id int64) {
	f.models[name] = id
}

func (f *FBXBuilder) GetModelId(name string) (int64, bool) {
	id, ok := f.models[name]
	return id, ok
}

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }

// Write encodes the document. The encoder seeks back to patch node end
// offsets, so it runs against a temp file.
func (f *FBXBuilder) Write(w io.Writer) error {
	f.updateDefinitions()

	tmp, err := os.CreateTemp("", "bvh_player.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := fbx.Write(tmp, f.doc); err != nil {
		return errors.Wrapf(err, "Unable to encode fbx")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	if _, err := io.Copy(w, tmp); err != nil {
		return errors.Wrapf(err, "Unable to copy fbx")
	}
	return nil
}
