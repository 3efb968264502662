/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package newswire

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire/model"
)

// ErrPackageTooDeep is returned when nested packages exceed the configured
// depth cap during fan-out.
var ErrPackageTooDeep = errors.New("package nesting exceeds maximum depth")

// PackagePlan is the result of fanning a composite item out for one
// recipient: the pruned package copy, the child items delivered alongside it
// and the refs kept after pruning.
type PackagePlan struct {
	Package *model.Item
	// Children holds the referenced items the recipient accepts, in group
	// order, nested packages flattened.
	Children []*model.Item
	// ResidRefs are the item ids still referenced by the pruned package.
	ResidRefs []string
}

// FanOutPackage builds the per-recipient rendition of a composite item.
// References the recipient does not accept are removed from the copy; nested
// packages are walked recursively up to the configured depth. Pruning can
// leave the plan without refs; the caller decides whether an empty rendition
// still goes out.
func (n *Newswire) FanOutPackage(ctx context.Context, pkg *model.Item, recipient Recipient, maxDepth int) (*PackagePlan, error) {
	if !pkg.IsComposite() {
		return nil, errors.Errorf("item %s is not a package", pkg.ItemID)
	}
	plan := &PackagePlan{Package: pkg.Copy()}
	visited := map[string]bool{pkg.ItemID: true}
	if err := n.pruneForRecipient(ctx, plan, plan.Package, recipient, maxDepth, visited); err != nil {
		return nil, err
	}
	return plan, nil
}

func (n *Newswire) pruneForRecipient(ctx context.Context, plan *PackagePlan, pkg *model.Item, recipient Recipient, depth int, visited map[string]bool) error {
	if depth <= 0 {
		return errors.Wrapf(ErrPackageTooDeep, "package %s", pkg.ItemID)
	}
	for _, ref := range pkg.ResidRefs() {
		if visited[ref] {
			logrus.Warnf("package %s references %s cyclically, dropping ref", pkg.ItemID, ref)
			pkg.RemoveRef(ref)
			continue
		}
		child, err := n.items.GetItem(ctx, ref)
		if err != nil {
			return errors.Wrapf(err, "loading package ref %s", ref)
		}

		if child.IsComposite() {
			visited[ref] = true
			childCopy := child.Copy()
			if err := n.pruneForRecipient(ctx, plan, childCopy, recipient, depth-1, visited); err != nil {
				return err
			}
			delete(visited, ref)
			if len(childCopy.ResidRefs()) == 0 {
				pkg.RemoveRef(ref)
				continue
			}
			plan.Children = append(plan.Children, childCopy)
			plan.ResidRefs = append(plan.ResidRefs, ref)
			continue
		}

		if !recipient.Retained {
			accepted, err := n.acceptsPackageItem(ctx, child, &recipient.Subscriber)
			if err != nil {
				return err
			}
			if !accepted {
				pkg.RemoveRef(ref)
				continue
			}
		}
		plan.Children = append(plan.Children, child)
		plan.ResidRefs = append(plan.ResidRefs, ref)
	}
	return nil
}

// acceptsPackageItem decides whether one referenced story stays in a
// recipient's package copy. Targeting does not apply inside a package; global
// filters and product matching do.
func (n *Newswire) acceptsPackageItem(ctx context.Context, item *model.Item, sub *model.Subscriber) (bool, error) {
	if n.blockedByGlobalFilter(item, sub) {
		return false, nil
	}
	_, accepted, err := n.matchProducts(ctx, item, sub)
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// PackageRefDiff compares a package version against the refs stored for its
// previous version. Added ids entered the package with this correction;
// removed ids left it and their recipients need the pruned rendition.
func (n *Newswire) PackageRefDiff(ctx context.Context, pkg *model.Item) (added []string, removed []string, err error) {
	previous, err := n.datasource.GetPackageRefs(ctx, pkg.ItemID, pkg.Version-1)
	if err != nil {
		return nil, nil, err
	}
	current := pkg.ResidRefs()

	currentSet := make(map[string]bool, len(current))
	for _, ref := range current {
		currentSet[ref] = true
	}
	previousSet := make(map[string]bool, len(previous))
	for _, ref := range previous {
		previousSet[ref] = true
	}

	for _, ref := range current {
		if !previousSet[ref] {
			added = append(added, ref)
		}
	}
	for _, ref := range previous {
		if !currentSet[ref] {
			removed = append(removed, ref)
		}
	}
	return added, removed, nil
}
