// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// InspectTimeout bounds the page load for InspectPoint. Inspection
// only needs the DOM, not settled network traffic.
const InspectTimeout = 15 * time.Second

// Rect is an element's bounding client rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Component describes the nearest React function component that
// rendered an element. Props holds only scalar props.
type Component struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"props,omitempty"`
}

// Element describes the DOM element at a point.
type Element struct {
	// Selector is a short CSS selector: the element id when it has
	// one, otherwise up to three tag.class:nth-of-type steps.
	Selector string `json:"selector"`
	TagName  string `json:"tagName"`
	// Text is the first 200 characters of innerText, or nil.
	Text         *string    `json:"text"`
	React        *Component `json:"react,omitempty"`
	BoundingRect Rect       `json:"boundingRect"`
}

// elementAtPointScript runs in the page. It returns null when nothing
// is under the point.
const elementAtPointScript = `(x, y) => {
  const el = document.elementFromPoint(x, y);
  if (!el) return null;

  function selectorFor(element) {
    if (element.id) return '#' + element.id;
    const path = [];
    let current = element;
    while (current && current !== document.body) {
      let step = current.tagName.toLowerCase();
      if (current.className && typeof current.className === 'string') {
        const classes = current.className.trim().split(/\s+/).filter(c => c && !c.startsWith('_'));
        if (classes.length > 0) step += '.' + classes.slice(0, 2).join('.');
      }
      const siblings = current.parentElement ? current.parentElement.children : null;
      if (siblings && siblings.length > 1) {
        const same = Array.from(siblings).filter(s => s.tagName === current.tagName);
        if (same.length > 1) step += ':nth-of-type(' + (same.indexOf(current) + 1) + ')';
      }
      path.unshift(step);
      current = current.parentElement;
      if (path.length >= 3) break;
    }
    return path.join(' > ');
  }

  function reactComponentFor(element) {
    const key = Object.keys(element).find(k => k.startsWith('__reactFiber$') || k.startsWith('__reactInternalInstance$'));
    if (!key) return null;
    try {
      let node = element[key];
      while (node) {
        if (node.type && typeof node.type === 'function') {
          const props = {};
          for (const [name, value] of Object.entries(node.memoizedProps || {})) {
            if (name === 'children' || typeof value === 'function' || (typeof value === 'object' && value !== null)) continue;
            props[name] = value;
          }
          return { name: node.type.displayName || node.type.name || 'Unknown', props };
        }
        node = node.return;
      }
    } catch (e) {}
    return null;
  }

  const rect = el.getBoundingClientRect();
  return {
    selector: selectorFor(el),
    tagName: el.tagName.toLowerCase(),
    text: el.innerText ? el.innerText.slice(0, 200) : null,
    react: reactComponentFor(el) || undefined,
    boundingRect: { x: rect.x, y: rect.y, width: rect.width, height: rect.height }
  };
}`

// InspectEngine is what InspectPoint needs from an engine.
type InspectEngine interface {
	Capability
	Evaluator
}

// InspectPoint opens url at viewport and describes the element at
// (x, y). It returns a nil Element without error when no element is
// under the point.
func InspectPoint(ctx context.Context, engine InspectEngine, url string, x, y int, viewport Viewport) (*Element, error) {
	handle, err := engine.Launch(ctx, viewport)
	if err != nil {
		return nil, err
	}
	defer engine.Close(handle)

	if err := engine.Navigate(ctx, handle, url, WaitDOMContentLoaded, InspectTimeout); err != nil {
		return nil, err
	}

	raw, err := engine.Evaluate(ctx, handle, elementAtPointScript, x, y)
	if err != nil {
		return nil, err
	}
	return decodeElement(raw)
}

func decodeElement(raw []byte) (*Element, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var element Element
	if err := json.Unmarshal(raw, &element); err != nil {
		return nil, fmt.Errorf("decoding element description: %w", err)
	}
	return &element, nil
}
