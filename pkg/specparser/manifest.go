package specparser

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// devEnginesSchema validates the shape of devEngines.packageManager when it
// is present as an object: name is a required string, version and onFail
// are optional strings. Any other shape (array, string, number) is warned
// about and ignored rather than rejected outright, per §4.4.
var devEnginesSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"version": {"type": "string"},
		"onFail": {"type": "string", "enum": ["error", "warn", "ignore"]}
	},
	"required": ["name"]
}`)

// ManifestRequests extracts every SpecRequest the manifest at manifestPath
// can produce: at most one from packageManager, at most one from
// devEngines.packageManager. Fields other than these two are never
// inspected.
func ManifestRequests(manifestPath string, raw []byte) ([]SpecRequest, error) {
	var out []SpecRequest

	if pm := gjson.GetBytes(raw, "packageManager"); pm.Exists() {
		req, err := packageManagerRequest(manifestPath, pm)
		if err != nil {
			return nil, err
		}
		if req != nil {
			out = append(out, *req)
		}
	}

	if de := gjson.GetBytes(raw, "devEngines.packageManager"); de.Exists() {
		req, ok := devEnginesRequest(manifestPath, de)
		if ok {
			out = append(out, req)
		}
	}

	return out, nil
}

func packageManagerRequest(manifestPath string, pm gjson.Result) (*SpecRequest, error) {
	if pm.Type != gjson.String {
		logger.Warnw("packageManager field is not a string, ignoring", "path", manifestPath)
		return nil, nil
	}

	name, expr, err := ParseNameAtSpec(pm.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", manifestPath, pm.String(), err)
	}

	if _, known := toolspec.Lookup(name); known {
		if expr.Kind == ExprURL {
			return nil, fmt.Errorf("%s: %s: %w", manifestPath, pm.String(), corepackerrors.ErrURLForKnownTool)
		}
		if err := RequireExact(expr); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", manifestPath, pm.String(), err)
		}
	}

	return &SpecRequest{
		Name:    name,
		Version: expr,
		Locator: SpecLocator{Kind: LocatorProjectManifest, Path: manifestPath},
	}, nil
}

func devEnginesRequest(manifestPath string, de gjson.Result) (SpecRequest, bool) {
	if de.Type != gjson.JSON || strings.HasPrefix(strings.TrimSpace(de.Raw), "[") {
		logger.Warnw("devEngines.packageManager is not an object, ignoring", "path", manifestPath)
		return SpecRequest{}, false
	}

	result, err := gojsonschema.Validate(devEnginesSchema, gojsonschema.NewStringLoader(de.Raw))
	if err != nil || !result.Valid() {
		logger.Warnw("devEngines.packageManager failed schema validation, ignoring",
			"path", manifestPath, "error", corepackerrors.ErrDevEnginesShape)
		return SpecRequest{}, false
	}

	name := toolspec.Name(de.Get("name").String())
	onFail := OnFail(de.Get("onFail").String())
	if onFail == "" {
		onFail = OnFailError
	}

	versionStr := de.Get("version").String()
	var expr VersionExpression
	if versionStr != "" {
		var parseErr error
		expr, parseErr = ParseVersionExpression(versionStr, false)
		if parseErr != nil {
			logger.Warnw("devEngines.packageManager.version is malformed, ignoring",
				"path", manifestPath, "error", parseErr)
			return SpecRequest{}, false
		}
	}

	return SpecRequest{
		Name:    name,
		Version: expr,
		Locator: SpecLocator{Kind: LocatorProjectDevEngines, Path: manifestPath},
		OnFail:  onFail,
	}, true
}
