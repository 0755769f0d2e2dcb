// Package modules declares the built-in processing modules. Importing it
// registers every module into registry.Default.
//
// Codec modules delegate to the external command configured in their JSON
// file under the configuration root, for example archive.unpack.json:
//
//	{"command": ["unpak", "-o", "{destination}", "{source}"], "timeout": "2m"}
package modules

import (
	"context"

	"github.com/mattjoyce/executor/internal/batch"
	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/registry"
)

var ArchiveUnpack = module.New("archive.unpack").
	Describe("Extract a game archive into a directory").
	Direct(module.Transform(false, module.ReplaceExt(".unpacked"))).
	Filter(filter.File(`(?i)\.(pak|arc)$`)).
	Option(1).
	RequireConfiguration().
	MustBuild()

var ArchivePack = module.New("archive.pack").
	Describe("Rebuild an archive from an unpacked directory").
	Direct(module.Transform(true, module.ReplaceExt(".pak"))).
	Filter(filter.Directory(`\.unpacked$`)).
	Option(2).
	RequireConfiguration().
	MustBuild()

var TextureDecode = module.New("texture.decode").
	Describe("Decode a texture to PNG").
	Direct(module.Transform(false, module.ReplaceExt(".png"))).
	Filter(filter.File(`(?i)\.(tex|dds)$`)).
	Option(3).
	RequireConfiguration().
	MustBuild()

var AudioUnpack = module.New("audio.unpack").
	Describe("Extract the streams of an audio bank").
	Direct(module.Transform(false, module.ReplaceExt(".streams"))).
	Filter(filter.File(`(?i)\.bnk$`)).
	Option(4).
	RequireConfiguration().
	MustBuild()

var AnimationDecode = module.New("animation.decode").
	Describe("Decode an animation to JSON").
	Direct(module.Transform(false, module.ReplaceExt(".json"))).
	Filter(filter.File(`(?i)\.(anm|anim)$`)).
	Option(5).
	RequireConfiguration().
	MustBuild()

var patchAfter = module.Prompt{Field: "after", Message: "Select the modified file", Kind: fsutil.KindFile}

// PatchCreate has no filter: it needs a second input and is reachable by id only.
var PatchCreate = module.New("patch.create").
	Describe("Create a binary patch from a file to its modified version").
	Direct(module.Transform(false, module.Suffix(".patch"), patchAfter)).
	Async(module.PromptedAsync).
	Prompt(patchAfter.Field, patchAfter.Message, patchAfter.Kind).
	Option(6).
	RequireConfiguration().
	MustBuild()

var Digest = module.New("digest").
	Describe("Write the BLAKE3 digest of a file").
	Direct(module.Transform(false, module.Suffix(".b3"))).
	Batch(digestBatch).
	Option(9).
	MustBuild()

// All returns the built-in modules in menu order.
func All() []*module.Descriptor {
	return []*module.Descriptor{
		ArchiveUnpack,
		ArchivePack,
		TextureDecode,
		AudioUnpack,
		AnimationDecode,
		PatchCreate,
		Digest,
	}
}

// Builtins returns the in-process collaborators, keyed by module id.
func Builtins() map[string]module.Collaborator {
	return map[string]module.Collaborator{
		Digest.ID(): DigestCollaborator(),
	}
}

// Register adds every built-in module to r.
func Register(r *registry.Registry) error {
	for _, d := range All() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	for _, d := range All() {
		registry.Default.MustRegister(d)
	}
}

// digestBatch hashes every file of a directory; digest has no filter to gate on.
var digestBatch module.BatchFunc = func(ctx context.Context, env *module.Env, direct module.DirectFunc, arg module.BatchArgument) (*module.BatchResult, error) {
	return batch.Basic(ctx, env, direct, arg, false, batch.WithMatch(notDigest))
}
