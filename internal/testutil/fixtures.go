// internal/testutil/fixtures.go
package testutil

// Test fixtures: extracts shaped like the files an acquisition tool
// writes into a bundle directory.

// FixturePS is ps output with a header and 17 processes. One kernel thread has
// an empty WCHAN column and one row carries an SELinux label.
const FixturePS = `USER           PID  PPID     VSZ    RSS WCHAN            ADDR S NAME
root             1     0 10904472 11768 do_epoll_wait      0 S init
root             2     0       0      0 kthreadd           0 S [kthreadd]
root             3     2       0      0 rescuer_thread     0 I [rcu_gp]
root             4     2       0      0 rescuer_thread     0 I [rcu_par_gp]
root             8     2       0      0                    0 I [mm_percpu_wq]
root           268     1 10846944  7344 do_sys_poll        0 S ueventd
logd           505     1 10904168  8376 sigsuspend         0 S logd
system         522     1 10828868  3904 do_epoll_wait      0 S servicemanager
system         523     1 10833820  5968 do_epoll_wait      0 S hwservicemanager
root           571     1 10995556  8048 do_epoll_wait      0 S vold
system         690     1 10843388  4420 binder_thread_read 0 S gatekeeperd
root           735     1 14853756 118432 do_sys_poll       0 S zygote64
u:r:platform_app:s0 u0_a115 2331 735 15337620 149124 do_epoll_wait 0 S com.android.systemui
radio         2550   735 14922512 105332 do_epoll_wait     0 S com.android.phone
u0_a144       2918   735 14908612  96020 do_epoll_wait     0 S com.google.android.gms
u0_a201       4512   735 14801100  70112 do_epoll_wait     0 S com.example.spyware
shell         9001  8990 10871668  3820 0                  0 R ps
`

// FixtureGetprop is getprop output with 13 well formed properties and one
// garbage line.
const FixtureGetprop = `[af.fast_track_multiplier]: [1]
[dalvik.vm.heapsize]: [512m]
[gsm.sim.operator.alpha]: [Carrier]
[gsm.sim.operator.iso-country]: [it]
[persist.sys.timezone]: [Europe/Rome]
[ro.boot.serialno]: [ABC123DEF]
[ro.build.version.sdk]: [33]
[ro.build.version.security_patch]: [2021-01-05]
[ro.product.cpu.abi]: [arm64-v8a]
[ro.product.locale]: [it-IT]
[ro.product.vendor.manufacturer]: [Google]
[ro.product.vendor.model]: [Pixel 6]
[persist.spy.enabled]: []
this line is not a property
`

// FixtureSettingsGlobal and FixtureSettingsSecure are two settings dumps as
// written by `settings list <namespace>`.
const FixtureSettingsGlobal = `adb_enabled=1
package_verifier_enable=0
verifier_verify_adb_installs=1
`

const FixtureSettingsSecure = `accessibility_enabled=1
install_non_market_apps=1
=orphan value
`

// FixtureDumpsysSeparator is the line closing a dumpsys service section.
const FixtureDumpsysSeparator = "-------------------------------------------------------------------------------"

// FixtureDumpsysPackage is a dumpsys extract with the package service holding
// receiver and activity resolver tables plus a Packages block.
const FixtureDumpsysPackage = `DUMP OF SERVICE accessibility:
ACCESSIBILITY MANAGER (dumpsys accessibility)
-------------------------------------------------------------------------------
DUMP OF SERVICE package:
Activity Resolver Table:
  Non-Data Actions:
      android.intent.action.MAIN:
        2a5d1f0 com.android.settings/.Settings filter 5b7e2f1
        8c6a3d2 com.example.spyware/.MainActivity filter 1d2e3f4

Receiver Resolver Table:
  Non-Data Actions:
     android.provider.Telephony.NEW_OUTGOING_SMS:
        3b1c4d5 com.example.spyware/.SmsReceiver filter 7e8f9a0
     android.intent.action.PHONE_STATE:
        4c2d5e6 com.example.spyware/.CallReceiver filter 8f9a0b1
        5d3e6f7 com.android.phone/.PhoneReceiver filter 9a0b1c2
     android.intent.action.BOOT_COMPLETED:
        6e4f7a8 com.android.settings/.BootReceiver filter 0b1c2d3

Packages:
  Package [com.example.spyware] (f3a1b2c):
    userId=10201
    versionCode=7 minSdk=26 targetSdk=30
    versionName=1.0.7
    timeStamp=2023-05-01 10:11:12
    firstInstallTime=2023-05-01 10:11:13
    lastUpdateTime=2023-05-02 09:00:00
    installerPackageName=null
    requested permissions:
      android.permission.READ_SMS
      android.permission.RECORD_AUDIO: granted=true
  Package [com.topjohnwu.magisk] (a1b2c3d):
    userId=10202
    versionName=26.1
    installerPackageName=com.android.vending
    requested permissions:
      android.permission.INTERNET: granted=true

-------------------------------------------------------------------------------
DUMP OF SERVICE window:
WINDOW MANAGER
`
