package econnect

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonp/econnect2mqtt/internal/types"
)

func queryCloud(t *testing.T) *fakeCloud {
	t.Helper()
	f := newFakeCloud(t)
	f.respond(pathStrings, http.StatusOK, stringsJSON)
	f.respond(pathSectors, http.StatusOK, areasJSON)
	f.respond(pathInputs, http.StatusOK, inputsJSON)
	f.respond(pathOutputs, http.StatusOK, outputsJSON)
	f.respond(pathStatusAdv, http.StatusOK, statusAdvJSON)
	return f
}

func TestDescriptions(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	d, err := c.Descriptions(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, "S1 Living Room", d.Name(types.ClassSector, 0))
	assert.Equal(t, "Outdoor Sensor 3", d.Name(types.ClassInput, 3))
	assert.Equal(t, "Output 3", d.Name(types.ClassOutput, 2))
	assert.Equal(t, types.UnknownName, d.Name(types.ClassOutput, 3))
	assert.Equal(t, "test", f.form(t, pathStrings, 0).Get("sessionId"))
}

func TestDescriptions_Errors(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestClient(t, f)
	_, err := c.Descriptions(testContext(t))
	assert.ErrorIs(t, err, ErrMissingToken)

	f.respond(pathStrings, http.StatusOK, `[{"Index": 1, "Description": "no class"}]`)
	c = sessionClient(t, f)
	_, err = c.Descriptions(testContext(t))
	assert.ErrorIs(t, err, ErrParse)

	// Failures are not cached.
	f.respond(pathStrings, http.StatusOK, stringsJSON)
	_, err = c.Descriptions(testContext(t))
	assert.NoError(t, err)
}

func TestQuery_Sectors(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategorySectors)
	require.NoError(t, err)

	assert.Equal(t, types.CategorySectors, res.Category)
	assert.Equal(t, 4, res.LastID)
	assert.Equal(t, map[int]types.Entity{
		0: {ID: 1, Index: 0, Element: 1, Name: "S1 Living Room", Status: true, Activable: true},
		1: {ID: 2, Index: 1, Element: 2, Name: "S2 Bedroom", Status: true, Activable: true},
		2: {ID: 3, Index: 2, Element: 3, Name: "S3 Outdoor", Status: false, Activable: false},
	}, res.Entities)
	assert.Nil(t, res.Alerts)
}

func TestQuery_Inputs(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategoryInputs)
	require.NoError(t, err)

	assert.Equal(t, 42, res.LastID)
	assert.Equal(t, map[int]types.Entity{
		0: {ID: 1, Index: 0, Element: 1, Name: "Entryway Sensor", Status: true},
		1: {ID: 2, Index: 1, Element: 2, Name: "Outdoor Sensor 1", Status: true},
		2: {ID: 3, Index: 2, Element: 3, Name: "Outdoor Sensor 2", Excluded: true},
	}, res.Entities)
}

func TestQuery_Outputs(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategoryOutputs)
	require.NoError(t, err)

	assert.Equal(t, 400261, res.LastID)
	assert.Equal(t, map[int]types.Entity{
		0: {ID: 400258, Index: 0, Element: 1, Name: "Output 1", Status: true, DoNotRequireAuthentication: true},
		1: {ID: 400259, Index: 1, Element: 2, Name: "Output 2"},
		2: {ID: 400260, Index: 2, Element: 3, Name: "Output 3", ControlDeniedToUsers: true},
	}, res.Entities)
}

func TestQuery_DescriptionsFetchedOnce(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	for _, cat := range []types.Category{types.CategorySectors, types.CategoryInputs, types.CategoryOutputs} {
		_, err := c.Query(testContext(t), cat)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.count(pathStrings))
}

func TestQuery_UnknownNames(t *testing.T) {
	f := queryCloud(t)
	f.respond(pathStrings, http.StatusOK, `[]`)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategorySectors)
	require.NoError(t, err)
	for _, e := range res.Entities {
		assert.Equal(t, types.UnknownName, e.Name)
	}
}

func TestQuery_LastID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "empty", body: `[]`, want: 0},
		{name: "unordered", body: `[{"InUse": true, "Id": 9, "Index": 0}, {"InUse": false, "Id": 3, "Index": 1}]`, want: 9},
		{name: "non numeric", body: `[{"InUse": true, "Id": 9, "Index": 0}, {"InUse": true, "Id": "x", "Index": 1}]`, want: 0},
		{name: "missing id", body: `[{"InUse": true, "Index": 0}]`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := queryCloud(t)
			f.respond(pathSectors, http.StatusOK, tt.body)
			c := sessionClient(t, f)

			res, err := c.Query(testContext(t), types.CategorySectors)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.LastID)
		})
	}
}

func TestQuery_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing InUse", body: `[{"Id": 1, "Index": 0, "Element": 1}]`},
		{name: "missing Index", body: `[{"InUse": true, "Id": 1, "Element": 1}]`},
		{name: "wrong type", body: `[{"InUse": true, "Id": 1, "Index": 0, "Element": "one"}]`},
		{name: "not json", body: `<html></html>`},
		{name: "object", body: `{"Id": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := queryCloud(t)
			f.respond(pathInputs, http.StatusOK, tt.body)
			c := sessionClient(t, f)

			_, err := c.Query(testContext(t), types.CategoryInputs)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestQuery_DeviceDisconnected(t *testing.T) {
	f := queryCloud(t)
	f.respond(pathSectors, http.StatusForbidden, `"Centrale non connessa"`)
	f.respond(pathStatusAdv, http.StatusForbidden, `"Centrale non connessa"`)
	c := sessionClient(t, f)

	_, err := c.Query(testContext(t), types.CategorySectors)
	assert.ErrorIs(t, err, ErrDeviceDisconnected)

	_, err = c.Query(testContext(t), types.CategoryAlerts)
	assert.ErrorIs(t, err, ErrDeviceDisconnected)
}

func TestQuery_HTTPErrors(t *testing.T) {
	f := queryCloud(t)
	f.respond(pathSectors, http.StatusForbidden, "Forbidden")
	f.respond(pathInputs, http.StatusUnauthorized, "Unauthorized")
	f.respond(pathOutputs, http.StatusInternalServerError, "boom")
	c := sessionClient(t, f)

	_, err := c.Query(testContext(t), types.CategorySectors)
	assert.NotErrorIs(t, err, ErrDeviceDisconnected)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	_, err = c.Query(testContext(t), types.CategoryInputs)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Query(testContext(t), types.CategoryOutputs)
	assert.Equal(t, http.StatusInternalServerError, statusCode(err))
}

func TestQuery_Alerts(t *testing.T) {
	f := queryCloud(t)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategoryAlerts)
	require.NoError(t, err)

	assert.Equal(t, 1, res.LastID)
	assert.Equal(t, 0, f.count(pathStrings))

	names := []string{
		"alarm_led", "anomalies_led", "device_failure", "device_low_battery",
		"device_no_power", "device_no_supervision", "device_system_block",
		"device_tamper", "gsm_anomaly", "gsm_low_balance", "has_anomaly",
		"input_alarm", "input_bypass", "input_failure", "input_low_battery",
		"input_no_supervision", "inputs_led", "module_registration",
		"panel_low_battery", "panel_no_power", "panel_tamper", "pstn_anomaly",
		"rf_interference", "system_test", "tamper_led",
	}
	require.Len(t, res.Alerts, len(names))
	for i, name := range names {
		assert.Equal(t, name, res.Alerts[i].Name, "alert %d", i)
	}
	assert.Equal(t, 1, res.Alerts[1].Status)
	assert.Equal(t, 0, res.Alerts[10].Status)
	assert.Equal(t, 2, res.Alerts[16].Status)
}

func TestQuery_AlertsBooleanStatus(t *testing.T) {
	f := queryCloud(t)
	f.respond(pathStatusAdv, http.StatusOK,
		`{"StatusUid": 7, "PanelLeds": {"AlarmLed": true}, "PanelAnomalies": {"HasAnomaly": false}}`)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategoryAlerts)
	require.NoError(t, err)
	assert.Equal(t, 7, res.LastID)
	assert.Equal(t, map[int]types.Alert{
		0: {Name: "alarm_led", Status: 1},
		1: {Name: "has_anomaly", Status: 0},
	}, res.Alerts)
}

func TestQuery_AlertsParseErrors(t *testing.T) {
	for _, body := range []string{
		`{"PanelLeds": {}, "PanelAnomalies": {}}`,
		`{"StatusUid": 1, "PanelAnomalies": {}}`,
		`{"StatusUid": 1, "PanelLeds": {}}`,
		`{"StatusUid": 1, "PanelLeds": {"AlarmLed": "on"}, "PanelAnomalies": {}}`,
		`[]`,
	} {
		f := queryCloud(t)
		f.respond(pathStatusAdv, http.StatusOK, body)
		c := sessionClient(t, f)

		_, err := c.Query(testContext(t), types.CategoryAlerts)
		assert.ErrorIs(t, err, ErrParse, body)
	}
}

func TestQuery_Panel(t *testing.T) {
	f := newFakeCloud(t)
	f.respond(pathLogin, http.StatusOK, loginResponseJSON)
	c := newTestClient(t, f)
	_, err := c.Authenticate(testContext(t), "test", "secret")
	require.NoError(t, err)

	res, err := c.Query(testContext(t), types.CategoryPanel)
	require.NoError(t, err)
	assert.Equal(t, 0, res.LastID)
	require.NotNil(t, res.Panel)
	assert.Equal(t, "T-800", res.Panel.Model)
	assert.Equal(t, 1, f.total())

	res.Panel.Model = "changed"
	again, err := c.Query(testContext(t), types.CategoryPanel)
	require.NoError(t, err)
	assert.Equal(t, "T-800", again.Panel.Model)
}

func TestQuery_PanelWithoutLoginDetails(t *testing.T) {
	f := newFakeCloud(t)
	c := sessionClient(t, f)

	res, err := c.Query(testContext(t), types.CategoryPanel)
	require.NoError(t, err)
	assert.Equal(t, &types.PanelInfo{}, res.Panel)
}

func TestQuery_Invalid(t *testing.T) {
	f := newFakeCloud(t)
	c := sessionClient(t, f)

	_, err := c.Query(testContext(t), types.Category(42))
	assert.ErrorIs(t, err, ErrQueryNotValid)
	assert.Equal(t, 0, f.total())
}

func TestQuery_WithoutSession(t *testing.T) {
	f := queryCloud(t)
	c := newTestClient(t, f)

	_, err := c.Query(testContext(t), types.CategorySectors)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, 0, f.total())
}
