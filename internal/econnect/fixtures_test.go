package econnect

const loginResponseJSON = `{
    "SessionId": "00000000-0000-0000-0000-000000000000",
    "Username": "test",
    "Domain": "domain",
    "IsConnected": true,
    "Panel": {
        "Description": "T-800 1.0.1",
        "LastConnection": "01/01/1984 13:27:28",
        "LastDisconnection": "01/10/1984 13:27:18",
        "Major": 1,
        "Minor": 0,
        "SourceIP": "10.0.0.1",
        "ConnectionType": "EthernetWiFi",
        "DeviceClass": 92,
        "Revision": 1,
        "Build": 1,
        "Brand": 0,
        "Language": 0,
        "Areas": 4,
        "SectorsPerArea": 4,
        "TotalSectors": 16,
        "Inputs": 24,
        "Outputs": 24,
        "Operators": 64,
        "SectorsInUse": [true, true, true, true, false, false, false, false],
        "Model": "T-800",
        "LoginWithoutUserID": true,
        "AdditionalInfoSupported": 1,
        "IsFirePanel": false
    },
    "Redirect": false,
    "RedirectTo": ""
}`

const commandOK = `[{"Poller": {"Poller": 1, "Panel": 1}, "CommandId": 5, "Successful": true}]`

const commandFailed = `[{"Poller": {"Poller": 1, "Panel": 1}, "CommandId": 5, "Successful": false}]`

const stringsJSON = `[
    {"AccountId": 1, "Class": 9, "Index": 0, "Description": "S1 Living Room"},
    {"AccountId": 1, "Class": 9, "Index": 1, "Description": "S2 Bedroom"},
    {"AccountId": 1, "Class": 9, "Index": 2, "Description": "S3 Outdoor"},
    {"AccountId": 1, "Class": 10, "Index": 0, "Description": "Entryway Sensor"},
    {"AccountId": 1, "Class": 10, "Index": 1, "Description": "Outdoor Sensor 1"},
    {"AccountId": 1, "Class": 10, "Index": 2, "Description": "Outdoor Sensor 2"},
    {"AccountId": 3, "Class": 10, "Index": 3, "Description": "Outdoor Sensor 3"},
    {"AccountId": 1, "Class": 12, "Index": 0, "Description": "Output 1"},
    {"AccountId": 1, "Class": 12, "Index": 1, "Description": "Output 2"},
    {"AccountId": 1, "Class": 12, "Index": 2, "Description": "Output 3"}
]`

const areasJSON = `[
    {"Active": true, "Activable": true, "InUse": true, "Id": 1, "Index": 0, "Element": 1},
    {"Active": true, "Activable": true, "InUse": true, "Id": 2, "Index": 1, "Element": 2},
    {"Active": false, "Activable": false, "InUse": true, "Id": 3, "Index": 2, "Element": 3},
    {"Active": false, "Activable": true, "InUse": false, "Id": 4, "Index": 3, "Element": 5}
]`

const inputsJSON = `[
    {"Alarm": true, "Excluded": false, "InUse": true, "Id": 1, "Index": 0, "Element": 1},
    {"Alarm": true, "Excluded": false, "InUse": true, "Id": 2, "Index": 1, "Element": 2},
    {"Alarm": false, "Excluded": true, "InUse": true, "Id": 3, "Index": 2, "Element": 3},
    {"Alarm": false, "Excluded": false, "InUse": false, "Id": 42, "Index": 3, "Element": 4}
]`

const outputsJSON = `[
    {"Active": true, "InUse": true, "DoNotRequireAuthentication": true, "ControlDeniedToUsers": false, "Id": 400258, "Index": 0, "Element": 1},
    {"Active": false, "InUse": true, "DoNotRequireAuthentication": false, "ControlDeniedToUsers": false, "Id": 400259, "Index": 1, "Element": 2},
    {"Active": false, "InUse": true, "DoNotRequireAuthentication": false, "ControlDeniedToUsers": true, "Id": 400260, "Index": 2, "Element": 3},
    {"Active": false, "InUse": false, "DoNotRequireAuthentication": false, "ControlDeniedToUsers": false, "Id": 400261, "Index": 3, "Element": 4}
]`

const statusAdvJSON = `{
    "StatusUid": 1,
    "PanelLeds": {
        "InputsLed": 2,
        "AnomaliesLed": 1,
        "AlarmLed": 0,
        "TamperLed": 0
    },
    "PanelAnomalies": {
        "HasAnomaly": false,
        "PanelTamper": 0,
        "PanelNoPower": 0,
        "PanelLowBattery": 0,
        "GsmAnomaly": 0,
        "GsmLowBalance": 0,
        "PstnAnomaly": 0,
        "SystemTest": 0,
        "ModuleRegistration": 0,
        "RfInterference": 0,
        "InputFailure": 0,
        "InputAlarm": 0,
        "InputBypass": 0,
        "InputLowBattery": 0,
        "InputNoSupervision": 0,
        "DeviceTamper": 0,
        "DeviceFailure": 0,
        "DeviceNoPower": 0,
        "DeviceLowBattery": 0,
        "DeviceNoSupervision": 0,
        "DeviceSystemBlock": 0
    },
    "PanelAlignmentAdv": {"ManualFwUpAvailable": false, "Id": 1, "Index": -1, "Element": 0}
}`

const updatesJSON = `{
    "ConnectionStatus": false,
    "CanElevate": false,
    "Areas": true,
    "Events": false,
    "Inputs": true,
    "Outputs": false,
    "Anomalies": false,
    "StatusAdv": false,
    "HasChanges": true
}`

const webLoginPage = `<!DOCTYPE html>
<html>
<head><title>e-Connect</title></head>
<body>
<div id="main">var sessionId = 'not-in-a-script';</div>
<script type="text/javascript">
    var sessionTimeout = 1200000;
    var apiURL = 'https://connect.elmospa.com/api/';
    var sessionId = 'f8h23b4e-7a9f-4d3f-9b08-2769263ee33c';
    var canElevate = '1';
</script>
</body>
</html>`
